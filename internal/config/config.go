package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backend names accepted by STORAGE_BACKEND and EVENTS_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the dagrun service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"DAGRUN_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"DAGRUN_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Storage   StorageConfig
	Events    EventsConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	LLM       LLMConfig
	Executors ExecutorConfig
	Workers   WorkerConfig
	Timeouts  TimeoutConfig
}

// StorageConfig selects where run records are kept
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	// RunTTL expires run records in Redis; zero keeps them forever.
	RunTTL time.Duration `env:"STORAGE_RUN_TTL" envDefault:"168h"`
}

// EventsConfig selects how run events are distributed
type EventsConfig struct {
	Backend          string `env:"EVENTS_BACKEND" envDefault:"memory"`
	SubscriberBuffer int    `env:"EVENTS_SUBSCRIBER_BUFFER" envDefault:"256"`
	SocketIOEnabled  bool   `env:"SOCKETIO_ENABLED" envDefault:"true"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASS"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"dagrun"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// PostgresConfig holds the run store database settings
type PostgresConfig struct {
	DSN          string `env:"POSTGRES_DSN"`
	MaxOpenConns int    `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int    `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	AutoMigrate  bool   `env:"POSTGRES_AUTO_MIGRATE" envDefault:"true"`
}

// LLMConfig holds LLM provider configuration. An empty provider disables
// the llm node type.
type LLMConfig struct {
	Provider         string        `env:"LLM_PROVIDER"`
	APIKey           string        `env:"LLM_API_KEY"`
	RequestTimeout   time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`
	DefaultModel     string        `env:"LLM_DEFAULT_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	DefaultMaxTokens int           `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"1024"`
}

// ExecutorConfig tunes the built-in node executors
type ExecutorConfig struct {
	HTTPTimeout time.Duration `env:"EXECUTOR_HTTP_TIMEOUT" envDefault:"30s"`
}

// WorkerConfig holds worker pool configuration. PoolSize is the number of
// long-lived workers; runs beyond it start on overflow goroutines.
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres DSN is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}

	switch c.Events.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported events backend: %s", c.Events.Backend)
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	switch c.LLM.Provider {
	case "", "none":
	case "anthropic":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM API key is required for provider %s", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == BackendRedis || c.Events.Backend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
