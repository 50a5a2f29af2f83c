package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.GRPCPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, BackendMemory, cfg.Events.Backend)
	assert.True(t, cfg.Events.SocketIOEnabled)
	assert.Equal(t, "", cfg.LLM.Provider)
	assert.Equal(t, 1024, cfg.LLM.DefaultMaxTokens)
	assert.Equal(t, 30*time.Second, cfg.Executors.HTTPTimeout)
	assert.Equal(t, 5, cfg.Workers.PoolSize)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, ":9090", cfg.GetGRPCAddr())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DAGRUN_HTTP_PORT", "8181")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("EVENTS_BACKEND", "redis")
	t.Setenv("REDIS_KEY_PREFIX", "test")
	t.Setenv("WORKER_POOL_SIZE", "2")
	t.Setenv("EXECUTOR_HTTP_TIMEOUT", "5s")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.HTTPPort)
	assert.Equal(t, "test", cfg.Redis.KeyPrefix)
	assert.Equal(t, 2, cfg.Workers.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Executors.HTTPTimeout)
	assert.True(t, cfg.UsesRedis())
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("WORKER_POOL_SIZE", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort: 8080,
			GRPCPort: 9090,
			LogLevel: "info",
			Storage:  StorageConfig{Backend: BackendMemory},
			Events:   EventsConfig{Backend: BackendMemory},
			Redis:    RedisConfig{Addr: "localhost:6379"},
			Workers:  WorkerConfig{PoolSize: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad http port", mutate: func(c *Config) { c.HTTPPort = 0 }, wantErr: "invalid HTTP port"},
		{name: "bad grpc port", mutate: func(c *Config) { c.GRPCPort = 70000 }, wantErr: "invalid gRPC port"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: "unsupported storage backend"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Backend = BackendPostgres }, wantErr: "postgres DSN is required"},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.Storage.Backend = BackendPostgres
			c.Postgres.DSN = "postgres://localhost/dagrun"
		}},
		{name: "unknown events", mutate: func(c *Config) { c.Events.Backend = "kafka" }, wantErr: "unsupported events backend"},
		{name: "redis without addr", mutate: func(c *Config) {
			c.Events.Backend = BackendRedis
			c.Redis.Addr = ""
		}, wantErr: "redis address is required"},
		{name: "memory ignores redis addr", mutate: func(c *Config) { c.Redis.Addr = "" }},
		{name: "anthropic without key", mutate: func(c *Config) { c.LLM.Provider = "anthropic" }, wantErr: "LLM API key is required"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "openai" }, wantErr: "unsupported LLM provider"},
		{name: "no workers", mutate: func(c *Config) { c.Workers.PoolSize = 0 }, wantErr: "worker pool size"},
		{name: "negative workers", mutate: func(c *Config) { c.Workers.PoolSize = -1 }, wantErr: "worker pool size"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
