package model

import (
	"time"

	"github.com/google/uuid"
)

// Beneficiary is the minimal collaborator record the ledger needs for existence checks.
type Beneficiary struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisplayName string    `gorm:"size:255"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Beneficiary) TableName() string { return "beneficiaries" }
