package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/apperr"
	"github.com/richardliu001/funding-ledger/internal/config"
	"github.com/richardliu001/funding-ledger/internal/events"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"github.com/richardliu001/funding-ledger/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService glues funding rules and repository.
type LedgerService struct {
	repo  repo.RepositoryInterface
	log   *zap.SugaredLogger
	bus   *events.Bus
	now   func() time.Time
	newID func() uuid.UUID

	refreeze  config.RefreezePolicy
	opTimeout time.Duration
}

// Option customises a LedgerService.
type Option func(*LedgerService)

// WithRefreezePolicy sets what OpenCollection does once contributions exist.
func WithRefreezePolicy(p config.RefreezePolicy) Option {
	return func(s *LedgerService) { s.refreeze = p }
}

// WithOpTimeout bounds operations whose context carries no deadline.
func WithOpTimeout(d time.Duration) Option {
	return func(s *LedgerService) { s.opTimeout = d }
}

// WithBus attaches an in-process listener bus, fed after commit.
func WithBus(b *events.Bus) Option {
	return func(s *LedgerService) { s.bus = b }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithIDGenerator replaces uuid.New.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *LedgerService) { s.newID = gen }
}

// NewLedgerService returns LedgerService.
func NewLedgerService(r repo.RepositoryInterface, logger *zap.SugaredLogger, opts ...Option) *LedgerService {
	s := &LedgerService{
		repo:     r,
		log:      logger,
		now:      time.Now,
		newID:    uuid.New,
		refreeze: config.RefreezeReject,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Repo exposes underlying repository (unit tests helper).
func (s *LedgerService) Repo() repo.RepositoryInterface {
	return s.repo
}

// timestamp is UTC at microsecond precision so stored rows and event payloads agree.
func (s *LedgerService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *LedgerService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// inTx runs fn in one transaction and converts whatever escapes into a typed error.
func (s *LedgerService) inTx(ctx context.Context, what string, fn func(tx *gorm.DB) error) error {
	err := s.repo.DB(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && apperr.KindOf(err) == apperr.KindInternal {
		return apperr.Internal(what+": aborted", ctxErr)
	}
	return apperr.FromStore(err, what)
}

// publish forwards committed events to in-process listeners.
func (s *LedgerService) publish(ctx context.Context, evts ...outbox.Event) {
	for _, e := range evts {
		s.bus.Publish(ctx, e)
	}
}
