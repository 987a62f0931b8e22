package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/money"
)

type OperatorFeeStatus string

const (
	OperatorFeePending OperatorFeeStatus = "PENDING"
	OperatorFeeSettled OperatorFeeStatus = "SETTLED"
)

// Contribution is an append-only payment record against a frozen assignment.
type Contribution struct {
	ID                         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	TargetID                   uuid.UUID         `gorm:"type:uuid;not null;index"`
	BeneficiaryID              uuid.UUID         `gorm:"type:uuid;not null;index"`
	Value                      money.Money       `gorm:"type:numeric(20,2);not null"`
	PlatformCommissionReserved money.Money       `gorm:"type:numeric(20,2);not null"`
	OperatorFee                money.Money       `gorm:"type:numeric(20,2);not null"`
	OperatorFeeStatus          OperatorFeeStatus `gorm:"size:20;not null"`
	OperatorFeeSettledAt       *time.Time
	CreatedAt                  time.Time `gorm:"autoCreateTime;index"`
}

func (Contribution) TableName() string { return "contributions" }

// NetToTarget is value minus the reserved platform commission.
func (c Contribution) NetToTarget() money.Money {
	return c.Value.Sub(c.PlatformCommissionReserved)
}

// PlatformProfit is the commission left after the operator fee.
func (c Contribution) PlatformProfit() money.Money {
	return c.PlatformCommissionReserved.Sub(c.OperatorFee)
}
