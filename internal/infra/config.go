package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5435"`
	PGUser      string `env:"PGUSER" envDefault:"betpoints"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"betpoints"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"betpoints"`
	PGMaxConns  int    `env:"PGMAXCONNS" envDefault:"20"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	// MigrationsDir overrides the db/migrations lookup.
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Redis
	RedisURL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6380"`
	CacheBackend  string        `env:"CACHE_BACKEND" envDefault:"memory"`
	MatchCacheTTL time.Duration `env:"MATCH_CACHE_TTL" envDefault:"30s"`
	LiveCacheTTL  time.Duration `env:"LIVE_CACHE_TTL" envDefault:"2s"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTPlayerExpiry time.Duration `env:"JWT_PLAYER_EXPIRY" envDefault:"24h"`
	JWTAdminExpiry  time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server ports
	APIPort     int `env:"API_PORT" envDefault:"3100"`
	MetricsPort int `env:"METRICS_PORT" envDefault:"9100"`

	// Kafka
	KafkaBrokers     string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled     bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaMatchTopic  string `env:"KAFKA_MATCH_TOPIC" envDefault:"betpoints.match.state"`
	KafkaNotifyTopic string `env:"KAFKA_NOTIFY_TOPIC" envDefault:"betpoints.bet.settled.notify"`
	KafkaGroupID     string `env:"KAFKA_GROUP_ID" envDefault:"settlement-worker"`

	// Outbox
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Settlement
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	SweepBatchSize     int           `env:"SWEEP_BATCH_SIZE" envDefault:"200"`
	SettlingStaleAfter time.Duration `env:"SETTLING_STALE_AFTER" envDefault:"2m"`
	// SettleConcurrency bounds bets settled in parallel per match. Each
	// holds a pool connection for its transaction.
	SettleConcurrency int `env:"SETTLE_CONCURRENCY" envDefault:"4"`
	RetryMaxAttempts   int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay     time.Duration `env:"RETRY_BASE_DELAY" envDefault:"10ms"`
	RetryMaxDelay      time.Duration `env:"RETRY_MAX_DELAY" envDefault:"200ms"`

	// Notifications
	NotifyWorkers   int `env:"NOTIFY_WORKERS" envDefault:"4"`
	NotifyQueueSize int `env:"NOTIFY_QUEUE_SIZE" envDefault:"1024"`

	// Content and guards
	ContentFile        string `env:"CONTENT_FILE"`
	PlacementRateLimit int    `env:"PLACEMENT_RATE_LIMIT" envDefault:"30"`
	// EmbeddedSweeper runs the settlement sweep inside the API process,
	// for single-process deployments on the memory store.
	EmbeddedSweeper bool `env:"EMBEDDED_SWEEPER" envDefault:"false"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig loads an optional .env file, then parses environment
// variables into a Config struct. Variables already set win over .env.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}
	switch c.CacheBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis or memory, got %q", c.CacheBackend)
	}
	if c.PGMaxConns < 1 {
		return fmt.Errorf("PGMAXCONNS must be at least 1")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.SweepBatchSize < 1 || c.NotifyWorkers < 1 || c.NotifyQueueSize < 1 {
		return fmt.Errorf("SWEEP_BATCH_SIZE, NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be positive")
	}
	if c.SettleConcurrency < 1 {
		return fmt.Errorf("SETTLE_CONCURRENCY must be at least 1")
	}
	if c.StoreDriver == "postgres" && c.SettleConcurrency >= c.PGMaxConns {
		return fmt.Errorf("SETTLE_CONCURRENCY (%d) must leave pool connections free: PGMAXCONNS is %d", c.SettleConcurrency, c.PGMaxConns)
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
