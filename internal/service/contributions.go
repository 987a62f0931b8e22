package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/apperr"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/richardliu001/funding-ledger/internal/money"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var maxRate = decimal.NewFromInt(100)

// RecordContributionInput carries a payment against a frozen assignment.
// Rates are percentages in [0, 100].
type RecordContributionInput struct {
	TargetID               uuid.UUID
	BeneficiaryID          uuid.UUID
	Value                  money.Money
	PlatformCommissionRate decimal.Decimal
	OperatorFeeRate        decimal.Decimal
}

func (in RecordContributionInput) validate() error {
	if !in.Value.IsPositive() {
		return apperr.FailedPrecondition("value must be positive")
	}
	if err := checkRate("platform commission rate", in.PlatformCommissionRate); err != nil {
		return err
	}
	return checkRate("operator fee rate", in.OperatorFeeRate)
}

func checkRate(name string, r decimal.Decimal) error {
	if r.IsNegative() {
		return apperr.FailedPrecondition("%s must not be negative", name)
	}
	if r.GreaterThan(maxRate) {
		return apperr.FailedPrecondition("%s must not exceed 100", name)
	}
	return nil
}

// RecordContribution stores a contribution with its commission split.
// commission = round2(value*rate/100) and operatorFee = round2(commission*rate/100),
// each rounded on its own.
func (s *LedgerService) RecordContribution(ctx context.Context, in RecordContributionInput) (*model.Contribution, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	commission := in.Value.Percent(in.PlatformCommissionRate)
	c := &model.Contribution{
		ID:                         s.newID(),
		TargetID:                   in.TargetID,
		BeneficiaryID:              in.BeneficiaryID,
		Value:                      in.Value,
		PlatformCommissionReserved: commission,
		OperatorFee:                commission.Percent(in.OperatorFeeRate),
		OperatorFeeStatus:          model.OperatorFeePending,
		CreatedAt:                  s.timestamp(),
	}
	evt := outbox.ContributionRecorded{
		ContributionID: c.ID,
		TargetID:       c.TargetID,
		BeneficiaryID:  c.BeneficiaryID,
		Value:          c.Value,
		Commission:     c.PlatformCommissionReserved,
		OperatorFee:    c.OperatorFee,
		RecordedAt:     c.CreatedAt,
	}

	err := s.inTx(ctx, "record contribution", func(tx *gorm.DB) error {
		// shared lock: contributions run in parallel, a re-freeze waits for them
		if _, err := s.repo.GetTargetForShare(ctx, tx, in.TargetID); err != nil {
			return apperr.FromStore(err, "target")
		}
		ok, err := s.repo.BeneficiaryExists(ctx, tx, in.BeneficiaryID)
		if err != nil {
			return apperr.FromStore(err, "beneficiary")
		}
		if !ok {
			return apperr.NotFound("beneficiary not found")
		}
		a, err := s.repo.GetAssignment(ctx, tx, model.AssignmentKey{TargetID: in.TargetID, BeneficiaryID: in.BeneficiaryID})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("beneficiary is not assigned to target")
		}
		if err != nil {
			return apperr.FromStore(err, "assignment")
		}
		if !a.Frozen() {
			return apperr.FailedPrecondition("fee not frozen")
		}
		if err := s.repo.CreateContribution(ctx, tx, c); err != nil {
			return apperr.FromStore(err, "contribution")
		}
		return s.repo.AppendEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("contribution recorded",
		"contribution_id", c.ID,
		"target_id", c.TargetID,
		"beneficiary_id", c.BeneficiaryID,
		"value", c.Value,
		"commission", c.PlatformCommissionReserved,
		"operator_fee", c.OperatorFee,
	)
	s.publish(ctx, evt)
	return c, nil
}

// ListContributionsByTarget returns the contributions of a target, newest first.
func (s *LedgerService) ListContributionsByTarget(ctx context.Context, targetID uuid.UUID) ([]model.Contribution, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var out []model.Contribution
	err := s.inTx(ctx, "list contributions", func(tx *gorm.DB) error {
		if _, err := s.repo.GetTarget(ctx, tx, targetID); err != nil {
			return apperr.FromStore(err, "target")
		}
		var err error
		out, err = s.repo.ListContributionsByTarget(ctx, tx, targetID)
		return err
	})
	return out, err
}

// ListContributionsByBeneficiary returns the contributions of a beneficiary, newest first.
func (s *LedgerService) ListContributionsByBeneficiary(ctx context.Context, beneficiaryID uuid.UUID) ([]model.Contribution, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var out []model.Contribution
	err := s.inTx(ctx, "list contributions", func(tx *gorm.DB) error {
		ok, err := s.repo.BeneficiaryExists(ctx, tx, beneficiaryID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("beneficiary not found")
		}
		out, err = s.repo.ListContributionsByBeneficiary(ctx, tx, beneficiaryID)
		return err
	})
	return out, err
}
