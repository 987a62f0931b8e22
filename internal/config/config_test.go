package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ShippedFile(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, RefreezeReject, cfg.Ledger.RefreezePolicy)
	assert.Equal(t, 5*time.Second, cfg.Ledger.OpTimeout)
	assert.Equal(t, "funding-ledger.events", cfg.Kafka.Topic)
	assert.Equal(t, 15*time.Second, cfg.Relay.LeaseTTL)
}

func TestParse_DefaultsAndEnv(t *testing.T) {
	t.Setenv("LEDGER_REDIS_ADDR", "redis:6380")
	t.Setenv("LEDGER_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := Parse([]byte(`
postgres:
  dsn: "host=db"
kafka:
  topic: t
`))
	require.NoError(t, err)
	assert.Equal(t, "host=db password=secret", cfg.Postgres.DSN)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "postgres", cfg.Postgres.Driver)
	assert.Equal(t, 100, cfg.Relay.BatchSize)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_Validation(t *testing.T) {
	_, err := Parse([]byte(`relay: {publisher: log}`))
	assert.ErrorContains(t, err, "dsn")

	_, err = Parse([]byte(`
postgres: {dsn: x}
ledger: {refreeze_policy: sometimes}
relay: {publisher: log}
`))
	assert.ErrorContains(t, err, "refreeze_policy")

	_, err = Parse([]byte(`postgres: {dsn: x}`))
	assert.ErrorContains(t, err, "kafka")

	_, err = Parse([]byte(`
postgres: {dsn: x, driver: sqlite}
relay: {publisher: log, poll_interval: 30s, lease_ttl: 10s}
`))
	assert.ErrorContains(t, err, "lease_ttl")
}

func TestLoadDefault_UsesEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("postgres: {dsn: file::memory:, driver: sqlite}\nrelay: {publisher: log}\n"), 0o600))
	t.Setenv("LEDGER_CONFIG", path)

	cfg, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Postgres.Driver)
	assert.Equal(t, "log", cfg.Relay.Publisher)
}
