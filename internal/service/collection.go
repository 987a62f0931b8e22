package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/apperr"
	"github.com/richardliu001/funding-ledger/internal/config"
	"github.com/richardliu001/funding-ledger/internal/money"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"gorm.io/gorm"
)

// CollectionResult is what OpenCollection froze.
type CollectionResult struct {
	TargetID          uuid.UUID
	FeePerBeneficiary money.Money
	BeneficiaryCount  int
	OpenedAt          time.Time
}

// OpenCollection freezes round2(estimatedValue / n) on every assignment of the
// target. The rounding residual, at most 0.01 per beneficiary, is not tracked.
//
// With the reject policy a target that already has contributions cannot be
// frozen again; with allow the fees are recomputed against the current count.
func (s *LedgerService) OpenCollection(ctx context.Context, targetID uuid.UUID) (*CollectionResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var evt outbox.CollectionOpened
	err := s.inTx(ctx, "open collection", func(tx *gorm.DB) error {
		t, err := s.repo.GetTargetForUpdate(ctx, tx, targetID)
		if err != nil {
			return apperr.FromStore(err, "target")
		}
		as, err := s.repo.ListAssignments(ctx, tx, targetID)
		if err != nil {
			return apperr.FromStore(err, "assignment")
		}
		if len(as) == 0 {
			return apperr.FailedPrecondition("no beneficiaries assigned")
		}
		if s.refreeze == config.RefreezeReject {
			n, err := s.repo.CountContributions(ctx, tx, targetID)
			if err != nil {
				return apperr.FromStore(err, "contribution")
			}
			if n > 0 {
				return apperr.FailedPrecondition("collection has contributions")
			}
		}

		count := len(as)
		fee := t.EstimatedValue.DivRound(int64(count))
		now := s.timestamp()
		touched, err := s.repo.FreezeAssignments(ctx, tx, targetID, fee, now)
		if err != nil {
			return apperr.FromStore(err, "assignment")
		}
		if touched != int64(count) {
			return apperr.Internal("open collection: assignment count changed during freeze", nil)
		}

		evt = outbox.CollectionOpened{
			TargetID:          targetID,
			FeePerBeneficiary: fee,
			BeneficiaryCount:  count,
			OpenedAt:          now,
		}
		return s.repo.AppendEvent(ctx, tx, evt)
	})
	if err != nil {
		s.log.Warnw("open collection failed", "target_id", targetID, "error", err)
		return nil, err
	}
	s.log.Infow("collection opened", "target_id", targetID, "fee", evt.FeePerBeneficiary, "beneficiaries", evt.BeneficiaryCount)
	s.publish(ctx, evt)
	return &CollectionResult{
		TargetID:          evt.TargetID,
		FeePerBeneficiary: evt.FeePerBeneficiary,
		BeneficiaryCount:  evt.BeneficiaryCount,
		OpenedAt:          evt.OpenedAt,
	}, nil
}
