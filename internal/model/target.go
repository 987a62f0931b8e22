package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/money"
)

// Target is a funding goal shared by a cohort of beneficiaries.
type Target struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Description    string      `gorm:"type:text"`
	Summary        string      `gorm:"type:text"`
	DueDate        time.Time   `gorm:"type:date;not null"`
	EstimatedValue money.Money `gorm:"type:numeric(20,2);not null"`
	CreatedAt      time.Time   `gorm:"autoCreateTime"`
}

func (Target) TableName() string { return "targets" }
