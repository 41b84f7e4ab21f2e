// Package notify fans finalized bets out to best-effort sinks such as
// achievement checks. Nothing here can fail or block a settlement: the
// outbox bet.settled event is the durable copy.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/infra"
	"github.com/google/uuid"
)

// DefaultTopic receives one message per settled bet.
const DefaultTopic = "betpoints.bet.settled.notify"

// Sink consumes settled bets.
type Sink interface {
	Name() string
	Notify(ctx context.Context, bet *domain.Bet) error
}

// Message is the payload sinks publish.
type Message struct {
	BetID     uuid.UUID        `json:"bet_id"`
	UserID    uuid.UUID        `json:"user_id"`
	Kind      domain.BetKind   `json:"kind"`
	Status    domain.BetStatus `json:"status"`
	Stake     int64            `json:"stake"`
	Payout    int64            `json:"payout"`
	Boosted   bool             `json:"boosted"`
	Legs      int              `json:"legs"`
	SettledAt *time.Time       `json:"settled_at"`
}

// NewMessage summarises a settled bet.
func NewMessage(bet *domain.Bet) Message {
	return Message{
		BetID:     bet.ID,
		UserID:    bet.UserID,
		Kind:      bet.Kind,
		Status:    bet.Status,
		Stake:     bet.Stake,
		Payout:    bet.Payout,
		Boosted:   bet.Boosted(),
		Legs:      len(bet.Selections),
		SettledAt: bet.SettledAt,
	}
}

// KafkaSink publishes settled bets for downstream achievement processing,
// keyed by user so one user's messages stay ordered.
type KafkaSink struct {
	producer infra.Publisher
	topic    string
}

// NewKafkaSink creates a KafkaSink.
func NewKafkaSink(producer infra.Publisher, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Notify(ctx context.Context, bet *domain.Bet) error {
	value, err := json.Marshal(NewMessage(bet))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.producer.Publish(ctx, s.topic, []byte(bet.UserID.String()), value)
}

// LogSink writes settled bets to the log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink { return &LogSink{logger: logger} }

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(_ context.Context, bet *domain.Bet) error {
	s.logger.Info("bet settled notification",
		"bet_id", bet.ID, "user_id", bet.UserID, "status", bet.Status, "payout", bet.Payout)
	return nil
}
