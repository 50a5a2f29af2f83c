package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/dagrun/internal/application/engine"
	"github.com/aescanero/dagrun/internal/application/executors"
	"github.com/aescanero/dagrun/internal/application/orchestrator"
	"github.com/aescanero/dagrun/internal/application/workers"
	"github.com/aescanero/dagrun/internal/config"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/aescanero/dagrun/pkg/adapters/events/fanout"
	"github.com/aescanero/dagrun/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/dagrun/pkg/adapters/events/redis"
	"github.com/aescanero/dagrun/pkg/adapters/events/socketio"
	"github.com/aescanero/dagrun/pkg/adapters/llm"
	"github.com/aescanero/dagrun/pkg/adapters/metrics/prometheus"
	memorystorage "github.com/aescanero/dagrun/pkg/adapters/storage/memory"
	"github.com/aescanero/dagrun/pkg/adapters/storage/postgres"
	redisstorage "github.com/aescanero/dagrun/pkg/adapters/storage/redis"
	"github.com/aescanero/dagrun/pkg/api/grpc"
	"github.com/aescanero/dagrun/pkg/api/http"
	"github.com/aescanero/dagrun/pkg/api/websocket"
	promclient "github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(version, buildTime string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow execution service",
		Long: `Run the HTTP, WebSocket, Socket.IO and gRPC health endpoints.
Configuration is read from environment variables, see internal/config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting dagrun",
				zap.String("version", version),
				zap.String("build_time", buildTime))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// closer releases a backend on shutdown
type closer struct {
	name  string
	close func() error
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].close(); err != nil {
				logger.Error("close error", zap.String("component", closers[i].name), zap.Error(err))
			}
		}
	}()

	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		closers = append(closers, closer{"redis", redisClient.Close})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	var store ports.RunStore
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		store = redisstorage.NewRunStore(redisClient, cfg.Redis.KeyPrefix, cfg.Storage.RunTTL, logger)
	case config.BackendPostgres:
		pg, err := postgres.Open(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			return err
		}
		closers = append(closers, closer{"postgres", pg.Close})
		pg.SetPoolLimits(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
		if cfg.Postgres.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				return err
			}
		}
		store = pg
	default:
		store = memorystorage.NewRunStore()
	}
	logger.Info("run store ready", zap.String("backend", cfg.Storage.Backend))

	var (
		subscriber ports.Subscriber
		bus        ports.Publisher
	)
	switch cfg.Events.Backend {
	case config.BackendRedis:
		b := redisevents.NewPubSubEventBus(redisClient, logger)
		closers = append(closers, closer{"event bus", b.Close})
		subscriber, bus = b, b
	default:
		b := memory.NewEventBus(cfg.Events.SubscriberBuffer)
		closers = append(closers, closer{"event bus", b.Close})
		subscriber, bus = b, b
	}

	var sio *socketio.Server
	publisher := fanout.New(bus)
	if cfg.Events.SocketIOEnabled {
		sio = socketio.NewServer(logger)
		publisher = fanout.New(bus, sio)
	}

	llmClient, err := llm.NewClient(&llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLM.RequestTimeout,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	registry := executors.NewRegistry(executors.Options{
		HTTPTimeout:  cfg.Executors.HTTPTimeout,
		LLM:          llmClient,
		LLMModel:     cfg.LLM.DefaultModel,
		LLMMaxTokens: cfg.LLM.DefaultMaxTokens,
		Logger:       logger,
	})
	if missing := registry.Missing(); len(missing) > 0 {
		logger.Info("node types without executor", zap.Any("types", missing))
	}

	metrics := prometheus.NewCollector(promclient.DefaultRegisterer)

	pool := workers.NewPool(
		cfg.Workers.PoolSize,
		metrics,
		logger,
		cfg.Workers.HealthCheckInterval,
	)
	if err := pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	eng := engine.New(registry, store, publisher, metrics, logger)
	manager := orchestrator.NewManager(eng, store, pool, orchestrator.NewValidator(), logger)

	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: manager,
		Registry:     registry,
		Health:       pool.Health(),
		Logger:       logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(subscriber, manager, logger))
	if sio != nil {
		httpServer.SetupSocketIO(sio.Handler())
	}

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}
	go grpcServer.MonitorHealth(ctx, pool.Health().IsHealthy, cfg.Workers.HealthCheckInterval)

	errCh := make(chan error, 2)
	go func() { errCh <- httpServer.Start() }()
	go func() { errCh <- grpcServer.Start() }()

	logger.Info("dagrun started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.Bool("socketio", sio != nil))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	logger.Info("dagrun shut down complete")
	return serveErr
}
