package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/money"
)

// AssignmentKey identifies an Assignment. It is comparable and usable as a map key.
type AssignmentKey struct {
	TargetID      uuid.UUID
	BeneficiaryID uuid.UUID
}

// Assignment links a beneficiary to a target and holds the frozen fee.
// FeeAmount and FeeFrozenAt are either both set or both nil.
type Assignment struct {
	TargetID      uuid.UUID    `gorm:"type:uuid;primaryKey"`
	BeneficiaryID uuid.UUID    `gorm:"type:uuid;primaryKey;index"`
	FeeAmount     *money.Money `gorm:"type:numeric(20,2);check:chk_fee_frozen_pair,(fee_amount IS NULL) = (fee_frozen_at IS NULL)"`
	FeeFrozenAt   *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`

	// Contributions is never preloaded. It declares the composite foreign key
	// contributions(target_id, beneficiary_id) -> target_beneficiaries, so an
	// assignment with contributions cannot be deleted.
	Contributions []Contribution `gorm:"foreignKey:TargetID,BeneficiaryID;references:TargetID,BeneficiaryID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

func (Assignment) TableName() string { return "target_beneficiaries" }

func (a Assignment) Key() AssignmentKey {
	return AssignmentKey{TargetID: a.TargetID, BeneficiaryID: a.BeneficiaryID}
}

// Frozen reports whether a fee has been fixed for this assignment.
func (a Assignment) Frozen() bool { return a.FeeFrozenAt != nil && a.FeeAmount != nil }

// Freeze sets both fee columns together.
func (a *Assignment) Freeze(fee money.Money, at time.Time) {
	a.FeeAmount = &fee
	a.FeeFrozenAt = &at
}
