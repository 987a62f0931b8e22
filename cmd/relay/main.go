package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/richardliu001/funding-ledger/internal/config"
	"github.com/richardliu001/funding-ledger/internal/database"
	"github.com/richardliu001/funding-ledger/internal/logger"
	"github.com/richardliu001/funding-ledger/internal/outbox"
	"github.com/richardliu001/funding-ledger/internal/relay"
)

func main() {
	requeue := flag.String("requeue", "", "event id of a parked FAILED event to hand back to the relay, then exit")
	flag.Parse()

	cfg, err := config.LoadDefault()
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := database.Open(cfg.Postgres)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := outbox.NewStore(gdb)
	if *requeue != "" {
		id, err := uuid.Parse(*requeue)
		if err != nil {
			log.Fatalf("requeue: invalid event id %q", *requeue)
		}
		ok, err := store.RequeueParked(ctx, id)
		if err != nil {
			log.Fatalf("requeue %s: %v", id, err)
		}
		if !ok {
			log.Fatalf("requeue %s: no FAILED event with that id", id)
		}
		log.Infow("parked event requeued", "event_id", id)
		return
	}

	// one active relay at a time keeps each target's events in order
	var lease relay.Leaser
	switch {
	case cfg.Redis.Addr != "":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		lease = relay.NewRedisLease(rdb, cfg.Relay.LeaseKey, uuid.NewString(), cfg.Relay.LeaseTTL)
	case cfg.Postgres.Driver == "postgres":
		sqlDB, err := gdb.DB()
		if err != nil {
			log.Fatalf("sql db: %v", err)
		}
		lease = relay.NewAdvisoryLease(sqlDB, cfg.Relay.LeaseKey)
	default:
		lease = relay.SoloLease{}
	}

	var pub relay.Publisher
	switch cfg.Relay.Publisher {
	case "log":
		pub = relay.NewLogPublisher(log)
	default:
		pub = relay.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	defer pub.Close()

	r := relay.New(store, pub, lease, cfg.Relay, log)
	if err := r.Run(ctx); err != nil {
		log.Errorf("relay: %v", err)
	}
}
