package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/richardliu001/funding-ledger/internal/config"
	"github.com/richardliu001/funding-ledger/internal/database"
	"github.com/richardliu001/funding-ledger/internal/events"
	"github.com/richardliu001/funding-ledger/internal/logger"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"github.com/richardliu001/funding-ledger/internal/repo"
	"github.com/richardliu001/funding-ledger/internal/service"
	httptransport "github.com/richardliu001/funding-ledger/internal/transport/http"
)

func main() {
	// 1. load config
	cfg, err := config.LoadDefault()
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. database
	gdb, err := database.Open(cfg.Postgres)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	// 4. in-process listeners
	bus := events.NewBus(log)
	bus.Subscribe(func(ctx context.Context, evt outbox.Event) error {
		log.Debugw("ledger event committed", "event_type", evt.EventType(), "target_id", evt.TargetKey())
		return nil
	})

	// 5. repo & service
	repository := repo.NewRepository(gdb, log)
	svc := service.NewLedgerService(repository, log,
		service.WithRefreezePolicy(cfg.Ledger.RefreezePolicy),
		service.WithOpTimeout(cfg.Ledger.OpTimeout),
		service.WithBus(bus),
	)

	// 6. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)

	// 7. serve until signalled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: router}
	go func() {
		log.Infof("funding-ledger listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
