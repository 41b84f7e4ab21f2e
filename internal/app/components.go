package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/betpoints/platform/internal/content"
	"github.com/betpoints/platform/internal/guard"
	"github.com/betpoints/platform/internal/infra"
	"github.com/betpoints/platform/internal/notify"
	"github.com/betpoints/platform/internal/odds"
	"github.com/betpoints/platform/internal/policy"
	"github.com/betpoints/platform/internal/projection"
	"github.com/betpoints/platform/internal/repository"
	"github.com/betpoints/platform/internal/repository/memory"
	"github.com/betpoints/platform/internal/service"
	"github.com/betpoints/platform/internal/settlement"
)

// Components is the assembled engine shared by the binaries.
type Components struct {
	Store       repository.Store
	Health      infra.HealthFunc
	Content     *content.Content
	Metrics     *infra.Metrics
	Cache       *projection.MatchCache
	Producer    *infra.KafkaProducer
	Dispatcher  *notify.Dispatcher
	Coordinator *settlement.Coordinator
	Wagers      *service.WagerService
	Accounts    *service.AccountService

	closers []func()
}

// OpenStore connects the configured store driver. The returned func
// releases it.
func OpenStore(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (repository.Store, infra.HealthFunc, func(), error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-process memory store; state is lost on exit")
		return memory.New(), func(context.Context) error { return nil }, func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	logger.Info("connected to postgres", "max_conns", cfg.PGMaxConns)
	return repository.NewPgStore(pool), infra.PoolHealth(pool), pool.Close, nil
}

// Build wires every component from cfg. Close releases them.
func Build(ctx context.Context, cfg *infra.Config, metrics *infra.Metrics, logger *slog.Logger) (*Components, error) {
	c := &Components{Metrics: metrics}

	gameContent, err := content.Load(cfg.ContentFile)
	if err != nil {
		return nil, err
	}
	c.Content = gameContent

	store, health, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Store, c.Health = store, health
	c.closers = append(c.closers, closeStore)

	cacheStore, err := c.cacheStore(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Cache = projection.NewMatchCache(cacheStore, store, cfg.MatchCacheTTL, cfg.LiveCacheTTL, logger)

	engine, err := odds.NewEngine(gameContent.Odds)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("odds engine: %w", err)
	}
	validator, err := policy.NewValidator(gameContent.Limits)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("limits validator: %w", err)
	}

	backoff := guard.Backoff{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}

	c.Producer = infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	c.closers = append(c.closers, func() { _ = c.Producer.Close() })

	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.KafkaEnabled {
		sinks = append(sinks, notify.NewKafkaSink(c.Producer, cfg.KafkaNotifyTopic))
	}
	c.Dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Backoff:   backoff,
	}, sinks, metrics, logger)
	c.Dispatcher.Start(ctx)
	// Closers run in reverse, so the queue drains before Kafka closes.
	c.closers = append(c.closers, c.Dispatcher.Close)

	c.Coordinator = settlement.NewCoordinator(settlement.Config{
		StaleAfter:  cfg.SettlingStaleAfter,
		BatchSize:   cfg.SweepBatchSize,
		Concurrency: cfg.SettleConcurrency,
		Backoff:     backoff,
	}, settlement.Deps{
		Store:       store,
		Matches:     store,
		Cache:       c.Cache,
		Notifier:    c.Dispatcher,
		Progression: gameContent.Progression,
		Metrics:     metrics,
		Logger:      logger,
	})

	var limiter *guard.RateLimiter
	if cfg.PlacementRateLimit > 0 {
		limiter = guard.NewRateLimiter(cfg.PlacementRateLimit, time.Minute)
	}
	c.Wagers = service.NewWagerService(service.WagerDeps{
		Store:   store,
		Matches: c.Cache,
		Engine:  engine,
		Limits:  validator,
		Content: gameContent,
		Limiter: limiter,
		Backoff: backoff,
		Metrics: metrics,
		Logger:  logger,
	})
	c.Accounts = service.NewAccountService(store, service.DefaultGrant, logger)
	return c, nil
}

func (c *Components) cacheStore(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (projection.Store, error) {
	if cfg.CacheBackend != "redis" {
		return projection.NewInMemoryStore(), nil
	}
	rdb, err := infra.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	c.closers = append(c.closers, func() { _ = rdb.Close() })
	logger.Info("match cache backed by redis")
	return projection.NewRedisStore(rdb), nil
}

// Close releases components in reverse order of creation.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
