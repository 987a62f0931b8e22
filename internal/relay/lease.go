package relay

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Leaser elects a single active relay. Acquire is called every tick and
// reports whether this process may drain the outbox.
type Leaser interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

const (
	renewScript   = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) else return 0 end`
	releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
)

// RedisLease is a SET NX PX lease. Only the holder's token can renew or drop it.
type RedisLease struct {
	rdb   redis.Cmdable
	key   string
	token string
	ttl   time.Duration
	held  bool
}

func NewRedisLease(rdb redis.Cmdable, key, token string, ttl time.Duration) *RedisLease {
	return &RedisLease{rdb: rdb, key: key, token: token, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	if l.held {
		n, err := l.rdb.Eval(ctx, renewScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
		if err != nil {
			l.held = false
			return false, err
		}
		if n == 1 {
			return true, nil
		}
		l.held = false
	}
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	l.held = ok
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	err := l.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// AdvisoryLease holds a Postgres session advisory lock on a dedicated
// connection. The lock lives as long as that session, so a crashed relay
// frees it when its connection drops.
type AdvisoryLease struct {
	db   *sql.DB
	key  int64
	conn *sql.Conn
}

func NewAdvisoryLease(db *sql.DB, key string) *AdvisoryLease {
	return &AdvisoryLease{db: db, key: AdvisoryKey(key)}
}

// AdvisoryKey maps a lease name onto the int8 key space of pg advisory locks.
func AdvisoryKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (l *AdvisoryLease) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		if err := l.conn.PingContext(ctx); err == nil {
			return true, nil
		}
		// session gone, and the lock with it
		_ = l.conn.Close()
		l.conn = nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		_ = conn.Close()
		return false, err
	}
	if !ok {
		_ = conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *AdvisoryLease) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// SoloLease always grants the lease. Only safe when a single relay can run,
// as with the sqlite driver.
type SoloLease struct{}

func (SoloLease) Acquire(context.Context) (bool, error) { return true, nil }
func (SoloLease) Release(context.Context) error         { return nil }
