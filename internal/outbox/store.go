package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the relay's view of the outbox table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// DB returns the underlying *gorm.DB bound to ctx.
func (s *Store) DB(ctx context.Context) *gorm.DB { return s.db.WithContext(ctx) }

// ClaimPending locks up to limit PENDING rows in id order. Targets that still
// have a FAILED event are skipped so per-target order survives retries.
func (s *Store) ClaimPending(ctx context.Context, tx *gorm.DB, limit int) ([]model.OutboxEvent, error) {
	blocked := tx.Model(&model.OutboxEvent{}).
		Select("aggregate_id").
		Where("status = ?", model.OutboxFailed)

	var rows []model.OutboxEvent
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND aggregate_id NOT IN (?)", model.OutboxPending, blocked).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkDispatched moves a row to DISPATCHED.
func (s *Store) MarkDispatched(ctx context.Context, tx *gorm.DB, id uint64, at time.Time) error {
	return tx.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ? AND status = ?", id, model.OutboxPending).
		Updates(map[string]interface{}{
			"status":        model.OutboxDispatched,
			"dispatched_at": at,
			"last_error":    "",
		}).Error
}

// MarkFailed moves a row to FAILED and schedules the next attempt.
func (s *Store) MarkFailed(ctx context.Context, tx *gorm.DB, id uint64, reason string, next time.Time) error {
	return tx.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ? AND status = ?", id, model.OutboxPending).
		Updates(map[string]interface{}{
			"status":          model.OutboxFailed,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      reason,
			"next_attempt_at": next,
		}).Error
}

// Requeue returns FAILED rows that are due, and still under maxAttempts, to PENDING.
func (s *Store) Requeue(ctx context.Context, now time.Time, maxAttempts int) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("status = ? AND next_attempt_at <= ? AND attempts < ?", model.OutboxFailed, now, maxAttempts).
		Updates(map[string]interface{}{
			"status":          model.OutboxPending,
			"next_attempt_at": nil,
		})
	return res.RowsAffected, res.Error
}

// RequeueParked hands a FAILED row back to the relay with a fresh attempt
// budget. It reports false when no FAILED row has that event id.
func (s *Store) RequeueParked(ctx context.Context, eventID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("event_id = ? AND status = ?", eventID, model.OutboxFailed).
		Updates(map[string]interface{}{
			"status":          model.OutboxPending,
			"attempts":        0,
			"next_attempt_at": nil,
		})
	return res.RowsAffected > 0, res.Error
}

// CountByStatus reports the number of rows per status.
func (s *Store) CountByStatus(ctx context.Context) (map[model.OutboxStatus]int64, error) {
	type statusCount struct {
		Status model.OutboxStatus
		Count  int64
	}
	var results []statusCount
	err := s.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.OutboxStatus]int64, len(results))
	for _, r := range results {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
