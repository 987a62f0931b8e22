// Package relay drains the outbox to a Publisher.
//
// Delivery is at least once: a crash between a broker ack and the DISPATCHED
// update resends the row, so consumers dedupe on the event id header.
package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/config"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Stats summarises one tick.
type Stats struct {
	Requeued   int64
	Dispatched int
	Failed     int
	Deferred   int
}

// Relay polls PENDING rows and moves them to DISPATCHED or FAILED.
type Relay struct {
	store   *outbox.Store
	pub     Publisher
	lease   Leaser
	limiter *rate.Limiter
	cfg     config.RelayConfig
	log     *zap.SugaredLogger
	now     func() time.Time
}

// New builds a relay. A zero PublishRate leaves publishing unthrottled.
func New(store *outbox.Store, pub Publisher, lease Leaser, cfg config.RelayConfig, log *zap.SugaredLogger) *Relay {
	r := &Relay{store: store, pub: pub, lease: lease, cfg: cfg, log: log, now: time.Now}
	if cfg.PublishRate > 0 {
		burst := int(cfg.PublishRate)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.PublishRate), burst)
	}
	return r
}

// Run ticks every PollInterval until ctx is done, then releases the lease.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := r.lease.Release(rctx); err != nil {
			r.log.Warnw("release lease", "error", err)
		}
	}()

	r.log.Infow("relay started", "poll_interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize)
	for {
		st, err := r.boundedTick(ctx)
		if err != nil && ctx.Err() == nil {
			r.log.Errorw("relay tick", "error", err)
		} else if st.Dispatched+st.Failed > 0 {
			r.log.Infow("relay tick", "dispatched", st.Dispatched, "failed", st.Failed, "deferred", st.Deferred, "requeued", st.Requeued)
		}
		select {
		case <-ctx.Done():
			r.log.Info("relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// boundedTick ends a tick before an expiring lease could pass to another
// relay while this one still holds claimed rows.
func (r *Relay) boundedTick(ctx context.Context) (Stats, error) {
	if r.cfg.LeaseTTL <= 0 {
		return r.Tick(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, r.cfg.LeaseTTL)
	defer cancel()
	return r.Tick(tctx)
}

// Tick runs one claim-publish-mark cycle. It does nothing unless the lease is held.
func (r *Relay) Tick(ctx context.Context) (Stats, error) {
	var st Stats
	held, err := r.lease.Acquire(ctx)
	if err != nil {
		return st, err
	}
	if !held {
		return st, nil
	}

	st.Requeued, err = r.store.Requeue(ctx, r.now(), r.cfg.MaxAttempts)
	if err != nil {
		return st, err
	}

	err = r.store.DB(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := r.store.ClaimPending(ctx, tx, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		// once a target fails, its later rows wait for the retry
		stalled := make(map[uuid.UUID]struct{})
		for _, row := range rows {
			if _, ok := stalled[row.AggregateID]; ok {
				st.Deferred++
				continue
			}
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			if perr := r.pub.Publish(ctx, row); perr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				stalled[row.AggregateID] = struct{}{}
				attempt := row.Attempts + 1
				next := r.now().Add(Backoff(r.cfg.BaseBackoff, r.cfg.MaxBackoff, attempt))
				if err := r.store.MarkFailed(ctx, tx, row.ID, perr.Error(), next); err != nil {
					return err
				}
				st.Failed++
				if attempt >= r.cfg.MaxAttempts {
					r.log.Errorw("event gave up after max attempts", "event_id", row.EventID, "target_id", row.AggregateID, "attempts", attempt, "error", perr)
				} else {
					r.log.Warnw("publish failed", "event_id", row.EventID, "attempt", attempt, "retry_at", next, "error", perr)
				}
				continue
			}
			if err := r.store.MarkDispatched(ctx, tx, row.ID, r.now()); err != nil {
				return err
			}
			st.Dispatched++
		}
		return nil
	})
	return st, err
}

// Backoff is base * 2^(attempt-1), capped at ceiling.
func Backoff(base, ceiling time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
