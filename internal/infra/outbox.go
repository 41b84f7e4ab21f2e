package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/betpoints/platform/internal/repository"
	"github.com/google/uuid"
)

// Publisher sends one message to a topic. KafkaProducer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxPoller polls the event outbox and publishes events to Kafka.
// Delivery is at-least-once: an event is marked only after publishing.
type OutboxPoller struct {
	outbox    repository.OutboxRepository
	producer  Publisher
	metrics   *Metrics
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(outbox repository.OutboxRepository, producer Publisher, metrics *Metrics, logger *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		outbox:    outbox,
		producer:  producer,
		metrics:   metrics,
		logger:    logger,
		interval:  500 * time.Millisecond,
		batchSize: 100,
	}
}

// WithSchedule overrides the poll interval and batch size.
func (p *OutboxPoller) WithSchedule(interval time.Duration, batchSize int) *OutboxPoller {
	if interval > 0 {
		p.interval = interval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	return p
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// Poll publishes one batch and returns how many events were delivered.
func (p *OutboxPoller) Poll(ctx context.Context) (int, error) {
	events, err := p.outbox.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		msg, _ := json.Marshal(map[string]interface{}{
			"event_id":       e.EventID,
			"aggregate_type": e.AggregateType,
			"aggregate_id":   e.AggregateID,
			"event_type":     e.EventType,
			"payload":        e.Payload,
			"occurred_at":    e.OccurredAt,
		})

		if err := p.producer.Publish(ctx, e.Topic(), []byte(e.PartitionKey), msg); err != nil {
			// Stop here so later events for the same key are not published ahead of this one.
			p.logger.Error("kafka publish failed", "event_id", e.EventID, "error", err)
			break
		}
		published = append(published, e.EventID)
	}

	if len(published) == 0 {
		return 0, nil
	}
	if err := p.outbox.MarkPublished(ctx, published); err != nil {
		return 0, err
	}
	if p.metrics != nil {
		p.metrics.OutboxPublished.Add(float64(len(published)))
	}
	p.logger.Debug("outbox poll complete", "published", len(published))
	return len(published), nil
}
