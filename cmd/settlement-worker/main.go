package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/betpoints/platform/internal/app"
	"github.com/betpoints/platform/internal/guard"
	"github.com/betpoints/platform/internal/infra"
	"github.com/betpoints/platform/internal/settlement"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("settlement worker failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.StoreDriver == "memory" {
		logger.Warn("settlement worker on the memory store sees only its own state; use EMBEDDED_SWEEPER on the API instead")
	}

	metrics := infra.NewMetrics(prometheus.DefaultRegisterer)
	c, err := app.Build(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	metricsSrv := infra.StartMetricsServer(cfg.MetricsPort, c.Health)
	defer metricsSrv.Close()

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaMatchTopic, cfg.KafkaGroupID, cfg.KafkaEnabled, logger)
	defer consumer.Close()

	backoff := guard.Backoff{MaxAttempts: cfg.RetryMaxAttempts, BaseDelay: cfg.RetryBaseDelay, MaxDelay: cfg.RetryMaxDelay}
	feed := settlement.NewFeed(consumer, c.Coordinator, guard.NewIdempotencyGuard(10_000), backoff, metrics, logger)

	logger.Info("settlement worker starting",
		"sweep_interval", cfg.SweepInterval, "stale_after", cfg.SettlingStaleAfter, "match_topic", cfg.KafkaMatchTopic)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Coordinator.Run(gctx, cfg.SweepInterval)
		return nil
	})
	g.Go(func() error {
		return feed.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("settlement worker stopped")
	return nil
}
