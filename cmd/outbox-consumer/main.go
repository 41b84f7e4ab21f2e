package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/betpoints/platform/internal/app"
	"github.com/betpoints/platform/internal/infra"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
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
	if cfg.StoreDriver != "postgres" {
		return fmt.Errorf("outbox consumer needs STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}

	store, health, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	metrics := infra.NewMetrics(prometheus.DefaultRegisterer)
	metricsSrv := infra.StartMetricsServer(cfg.MetricsPort, health)
	defer metricsSrv.Close()

	poller := infra.NewOutboxPoller(store, producer, metrics, logger).
		WithSchedule(cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	poller.Run(ctx)

	logger.Info("outbox consumer stopped")
	return nil
}
