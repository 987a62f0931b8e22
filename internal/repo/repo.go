package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/model"
	"github.com/richardliu001/funding-ledger/internal/money"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RepositoryInterface restricts Repo methods (keeps the service mockable).
// Every method except DB takes the caller's transaction.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateTarget(ctx context.Context, tx *gorm.DB, t *model.Target) error
	GetTarget(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Target, error)
	GetTargetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Target, error)
	GetTargetForShare(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Target, error)
	ListTargets(ctx context.Context, tx *gorm.DB) ([]model.Target, error)

	CreateBeneficiary(ctx context.Context, tx *gorm.DB, b *model.Beneficiary) error
	BeneficiaryExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	FindBeneficiaries(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Beneficiary, error)

	ListAssignments(ctx context.Context, tx *gorm.DB, targetID uuid.UUID) ([]model.Assignment, error)
	GetAssignment(ctx context.Context, tx *gorm.DB, key model.AssignmentKey) (*model.Assignment, error)
	CreateAssignments(ctx context.Context, tx *gorm.DB, as []model.Assignment) error
	FreezeAssignments(ctx context.Context, tx *gorm.DB, targetID uuid.UUID, fee money.Money, at time.Time) (int64, error)

	CreateContribution(ctx context.Context, tx *gorm.DB, c *model.Contribution) error
	CountContributions(ctx context.Context, tx *gorm.DB, targetID uuid.UUID) (int64, error)
	ListContributionsByTarget(ctx context.Context, tx *gorm.DB, targetID uuid.UUID) ([]model.Contribution, error)
	ListContributionsByBeneficiary(ctx context.Context, tx *gorm.DB, beneficiaryID uuid.UUID) ([]model.Contribution, error)

	AppendEvent(ctx context.Context, tx *gorm.DB, evt outbox.Event) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateTarget inserts a target.
func (r *Repository) CreateTarget(ctx context.Context, tx *gorm.DB, t *model.Target) error {
	return tx.WithContext(ctx).Create(t).Error
}

func (r *Repository) GetTarget(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Target, error) {
	return r.getTarget(ctx, tx, id, nil)
}

// GetTargetForUpdate locks the target row exclusively until tx ends.
func (r *Repository) GetTargetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Target, error) {
	return r.getTarget(ctx, tx, id, &clause.Locking{Strength: "UPDATE"})
}

// GetTargetForShare takes a shared lock: concurrent readers pass, a freeze waits.
func (r *Repository) GetTargetForShare(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Target, error) {
	return r.getTarget(ctx, tx, id, &clause.Locking{Strength: "SHARE"})
}

func (r *Repository) getTarget(ctx context.Context, tx *gorm.DB, id uuid.UUID, lock *clause.Locking) (*model.Target, error) {
	q := tx.WithContext(ctx)
	if lock != nil {
		q = q.Clauses(*lock)
	}
	var t model.Target
	if err := q.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTargets returns targets newest first.
func (r *Repository) ListTargets(ctx context.Context, tx *gorm.DB) ([]model.Target, error) {
	var ts []model.Target
	err := tx.WithContext(ctx).Order("created_at desc").Find(&ts).Error
	return ts, err
}

func (r *Repository) CreateBeneficiary(ctx context.Context, tx *gorm.DB, b *model.Beneficiary) error {
	return tx.WithContext(ctx).Create(b).Error
}

// BeneficiaryExists is the collaborator existence lookup.
func (r *Repository) BeneficiaryExists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Beneficiary{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// FindBeneficiaries returns the subset of ids that exist.
func (r *Repository) FindBeneficiaries(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Beneficiary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var bs []model.Beneficiary
	err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&bs).Error
	return bs, err
}

// ListAssignments returns all assignments of a target in assignment order.
func (r *Repository) ListAssignments(ctx context.Context, tx *gorm.DB, targetID uuid.UUID) ([]model.Assignment, error) {
	var as []model.Assignment
	err := tx.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at, beneficiary_id").
		Find(&as).Error
	return as, err
}

func (r *Repository) GetAssignment(ctx context.Context, tx *gorm.DB, key model.AssignmentKey) (*model.Assignment, error) {
	var a model.Assignment
	err := tx.WithContext(ctx).
		Where("target_id = ? AND beneficiary_id = ?", key.TargetID, key.BeneficiaryID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAssignments inserts new pairs. Callers filter out existing ones first.
func (r *Repository) CreateAssignments(ctx context.Context, tx *gorm.DB, as []model.Assignment) error {
	if len(as) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&as).Error
}

// FreezeAssignments writes fee and timestamp to every assignment of the target
// in one statement and returns the number of rows touched.
func (r *Repository) FreezeAssignments(ctx context.Context, tx *gorm.DB, targetID uuid.UUID, fee money.Money, at time.Time) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("target_id = ?", targetID).
		Updates(map[string]interface{}{
			"fee_amount":    fee,
			"fee_frozen_at": at,
		})
	return res.RowsAffected, res.Error
}

// CreateContribution inserts record.
func (r *Repository) CreateContribution(ctx context.Context, tx *gorm.DB, c *model.Contribution) error {
	return tx.WithContext(ctx).Create(c).Error
}

func (r *Repository) CountContributions(ctx context.Context, tx *gorm.DB, targetID uuid.UUID) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Contribution{}).Where("target_id = ?", targetID).Count(&n).Error
	return n, err
}

// ListContributionsByTarget returns contributions newest first.
func (r *Repository) ListContributionsByTarget(ctx context.Context, tx *gorm.DB, targetID uuid.UUID) ([]model.Contribution, error) {
	var cs []model.Contribution
	err := tx.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at desc").
		Find(&cs).Error
	return cs, err
}

// ListContributionsByBeneficiary returns contributions newest first.
func (r *Repository) ListContributionsByBeneficiary(ctx context.Context, tx *gorm.DB, beneficiaryID uuid.UUID) ([]model.Contribution, error) {
	var cs []model.Contribution
	err := tx.WithContext(ctx).
		Where("beneficiary_id = ?", beneficiaryID).
		Order("created_at desc").
		Find(&cs).Error
	return cs, err
}

// AppendEvent writes the outbox row inside tx.
func (r *Repository) AppendEvent(ctx context.Context, tx *gorm.DB, evt outbox.Event) error {
	row, err := outbox.Append(ctx, tx, evt)
	if err != nil {
		return err
	}
	r.log.Debugw("outbox event appended", "event_id", row.EventID, "event_type", row.EventType, "target_id", row.AggregateID)
	return nil
}
