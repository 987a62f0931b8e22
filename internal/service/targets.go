package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/apperr"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/richardliu001/funding-ledger/internal/money"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"gorm.io/gorm"
)

// CreateTargetInput describes a new funding target.
type CreateTargetInput struct {
	Description    string
	Summary        string
	DueDate        time.Time
	EstimatedValue money.Money
}

// TargetSummary is the read model for a target and its freeze state.
type TargetSummary struct {
	Target            model.Target
	BeneficiaryCount  int
	FeePerBeneficiary *money.Money
	FeeFrozenAt       *time.Time
}

// CreateTarget stores a target and journals TargetCreated.
func (s *LedgerService) CreateTarget(ctx context.Context, in CreateTargetInput) (*model.Target, error) {
	if !in.EstimatedValue.IsPositive() {
		return nil, apperr.FailedPrecondition("estimated value must be positive")
	}
	if in.DueDate.IsZero() {
		return nil, apperr.FailedPrecondition("due date is required")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	now := s.timestamp()
	t := &model.Target{
		ID:             s.newID(),
		Description:    in.Description,
		Summary:        in.Summary,
		DueDate:        truncateDay(in.DueDate),
		EstimatedValue: in.EstimatedValue,
		CreatedAt:      now,
	}
	evt := outbox.TargetCreated{
		TargetID:       t.ID,
		EstimatedValue: t.EstimatedValue,
		DueDate:        t.DueDate.Format("2006-01-02"),
		CreatedAt:      now,
	}
	err := s.inTx(ctx, "create target", func(tx *gorm.DB) error {
		if err := s.repo.CreateTarget(ctx, tx, t); err != nil {
			return apperr.FromStore(err, "target")
		}
		return s.repo.AppendEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("target created", "target_id", t.ID, "due_date", evt.DueDate, "estimated_value", t.EstimatedValue)
	s.publish(ctx, evt)
	return t, nil
}

// RegisterBeneficiary creates the collaborator record used for existence checks.
func (s *LedgerService) RegisterBeneficiary(ctx context.Context, displayName string) (*model.Beneficiary, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperr.FailedPrecondition("display name is required")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	b := &model.Beneficiary{ID: s.newID(), DisplayName: displayName, CreatedAt: s.timestamp()}
	err := s.inTx(ctx, "register beneficiary", func(tx *gorm.DB) error {
		return s.repo.CreateBeneficiary(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("beneficiary registered", "beneficiary_id", b.ID)
	return b, nil
}

// AssignBeneficiaries adds beneficiaries to a target. Ids already assigned are
// skipped; the returned count covers only new rows. Unknown ids fail the whole call.
func (s *LedgerService) AssignBeneficiaries(ctx context.Context, targetID uuid.UUID, beneficiaryIDs []uuid.UUID) (int, error) {
	ids := dedupe(beneficiaryIDs)
	if len(ids) == 0 {
		return 0, apperr.FailedPrecondition("no beneficiary ids given")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		added []uuid.UUID
		evt   outbox.BeneficiariesAssigned
	)
	err := s.inTx(ctx, "assign beneficiaries", func(tx *gorm.DB) error {
		// same lock as OpenCollection, so a freeze never sees a half-applied assignment batch
		if _, err := s.repo.GetTargetForUpdate(ctx, tx, targetID); err != nil {
			return apperr.FromStore(err, "target")
		}
		found, err := s.repo.FindBeneficiaries(ctx, tx, ids)
		if err != nil {
			return apperr.FromStore(err, "beneficiary")
		}
		if len(found) != len(ids) {
			return apperr.NotFound("beneficiary not found: %s", firstMissing(ids, found))
		}

		existing, err := s.repo.ListAssignments(ctx, tx, targetID)
		if err != nil {
			return apperr.FromStore(err, "assignment")
		}
		assigned := make(map[model.AssignmentKey]struct{}, len(existing))
		for _, a := range existing {
			assigned[a.Key()] = struct{}{}
		}

		now := s.timestamp()
		var rows []model.Assignment
		for _, id := range ids {
			key := model.AssignmentKey{TargetID: targetID, BeneficiaryID: id}
			if _, ok := assigned[key]; ok {
				continue
			}
			rows = append(rows, model.Assignment{TargetID: targetID, BeneficiaryID: id, CreatedAt: now})
			added = append(added, id)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := s.repo.CreateAssignments(ctx, tx, rows); err != nil {
			return apperr.FromStore(err, "assignment")
		}
		evt = outbox.BeneficiariesAssigned{
			TargetID:       targetID,
			BeneficiaryIDs: added,
			Count:          len(added),
			AssignedAt:     now,
		}
		return s.repo.AppendEvent(ctx, tx, evt)
	})
	if err != nil {
		return 0, err
	}
	if len(added) == 0 {
		s.log.Infow("no new beneficiaries to assign", "target_id", targetID)
		return 0, nil
	}
	s.log.Infow("beneficiaries assigned", "target_id", targetID, "added", len(added))
	s.publish(ctx, evt)
	return len(added), nil
}

// ListAssignments returns the assignments of a target.
func (s *LedgerService) ListAssignments(ctx context.Context, targetID uuid.UUID) ([]model.Assignment, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var out []model.Assignment
	err := s.inTx(ctx, "list assignments", func(tx *gorm.DB) error {
		if _, err := s.repo.GetTarget(ctx, tx, targetID); err != nil {
			return apperr.FromStore(err, "target")
		}
		var err error
		out, err = s.repo.ListAssignments(ctx, tx, targetID)
		return err
	})
	return out, err
}

// GetTargetSummary reports the beneficiary count and the most recent frozen fee.
func (s *LedgerService) GetTargetSummary(ctx context.Context, targetID uuid.UUID) (*TargetSummary, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var sum *TargetSummary
	err := s.inTx(ctx, "target summary", func(tx *gorm.DB) error {
		t, err := s.repo.GetTarget(ctx, tx, targetID)
		if err != nil {
			return apperr.FromStore(err, "target")
		}
		sum, err = s.summarize(ctx, tx, *t)
		return err
	})
	return sum, err
}

// ListTargets returns summaries of every target, newest first.
func (s *LedgerService) ListTargets(ctx context.Context) ([]TargetSummary, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var out []TargetSummary
	err := s.inTx(ctx, "list targets", func(tx *gorm.DB) error {
		ts, err := s.repo.ListTargets(ctx, tx)
		if err != nil {
			return err
		}
		out = make([]TargetSummary, 0, len(ts))
		for _, t := range ts {
			sum, err := s.summarize(ctx, tx, t)
			if err != nil {
				return err
			}
			out = append(out, *sum)
		}
		return nil
	})
	return out, err
}

func (s *LedgerService) summarize(ctx context.Context, tx *gorm.DB, t model.Target) (*TargetSummary, error) {
	as, err := s.repo.ListAssignments(ctx, tx, t.ID)
	if err != nil {
		return nil, err
	}
	sum := &TargetSummary{Target: t, BeneficiaryCount: len(as)}
	for _, a := range as {
		if !a.Frozen() {
			continue
		}
		if sum.FeeFrozenAt == nil || a.FeeFrozenAt.After(*sum.FeeFrozenAt) {
			fee, at := *a.FeeAmount, *a.FeeFrozenAt
			sum.FeePerBeneficiary, sum.FeeFrozenAt = &fee, &at
		}
	}
	return sum, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func firstMissing(ids []uuid.UUID, found []model.Beneficiary) uuid.UUID {
	have := make(map[uuid.UUID]struct{}, len(found))
	for _, b := range found {
		have[b.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			return id
		}
	}
	return uuid.Nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
