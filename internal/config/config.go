package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when LEDGER_CONFIG is unset.
const DefaultPath = "internal/config/config.yaml"

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Log       LogConfig       `yaml:"log"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Relay     RelayConfig     `yaml:"relay"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type PostgresConfig struct {
	// Driver is "postgres" or "sqlite" (single-node/local runs).
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// RefreezePolicy controls OpenCollection on a target that already has contributions.
type RefreezePolicy string

const (
	RefreezeReject RefreezePolicy = "reject"
	RefreezeAllow  RefreezePolicy = "allow"
)

type LedgerConfig struct {
	RefreezePolicy RefreezePolicy `yaml:"refreeze_policy"`
	// OpTimeout bounds each ledger operation when the caller has no deadline.
	OpTimeout time.Duration `yaml:"op_timeout"`
}

type RelayConfig struct {
	// Publisher is "kafka" or "log".
	Publisher    string        `yaml:"publisher"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseBackoff  time.Duration `yaml:"base_backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	// PublishRate caps messages per second; 0 disables the limiter.
	PublishRate float64       `yaml:"publish_rate"`
	LeaseKey    string        `yaml:"lease_key"`
	LeaseTTL    time.Duration `yaml:"lease_ttl"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadDefault reads the file named by LEDGER_CONFIG, or DefaultPath.
func LoadDefault() (*Config, error) {
	path := os.Getenv("LEDGER_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

// Parse decodes yaml, applies env overrides and defaults, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if dsn := os.Getenv("LEDGER_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" && cfg.Postgres.Driver != "sqlite" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if addr := os.Getenv("LEDGER_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if brokers := os.Getenv("LEDGER_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Postgres.Driver == "" {
		cfg.Postgres.Driver = "postgres"
	}
	if cfg.RateLimit.RPS == 0 {
		cfg.RateLimit.RPS = 50
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = cfg.RateLimit.RPS * 2
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Ledger.RefreezePolicy == "" {
		cfg.Ledger.RefreezePolicy = RefreezeReject
	}
	if cfg.Ledger.OpTimeout == 0 {
		cfg.Ledger.OpTimeout = 5 * time.Second
	}
	r := &cfg.Relay
	if r.Publisher == "" {
		r.Publisher = "kafka"
	}
	if r.PollInterval == 0 {
		r.PollInterval = time.Second
	}
	if r.BatchSize == 0 {
		r.BatchSize = 100
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 10
	}
	if r.BaseBackoff == 0 {
		r.BaseBackoff = time.Second
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = 5 * time.Minute
	}
	if r.LeaseKey == "" {
		r.LeaseKey = "funding-ledger:relay:lease"
	}
	if r.LeaseTTL == 0 {
		r.LeaseTTL = 15 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required")
	}
	switch c.Postgres.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown postgres.driver %q", c.Postgres.Driver)
	}
	switch c.Ledger.RefreezePolicy {
	case RefreezeReject, RefreezeAllow:
	default:
		return fmt.Errorf("config: unknown ledger.refreeze_policy %q", c.Ledger.RefreezePolicy)
	}
	switch c.Relay.Publisher {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.brokers and kafka.topic are required for the kafka publisher")
		}
	case "log":
	default:
		return fmt.Errorf("config: unknown relay.publisher %q", c.Relay.Publisher)
	}
	if c.Relay.LeaseTTL <= c.Relay.PollInterval {
		return fmt.Errorf("config: relay.lease_ttl must exceed relay.poll_interval")
	}
	return nil
}
