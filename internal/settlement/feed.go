package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/guard"
	"github.com/betpoints/platform/internal/infra"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MatchState is the pushed match-state message.
type MatchState struct {
	ID        uuid.UUID           `json:"id"`
	HomeTeam  string              `json:"home_team"`
	AwayTeam  string              `json:"away_team"`
	Status    domain.MatchStatus  `json:"status"`
	Score     domain.Score        `json:"score"`
	Minute    int                 `json:"minute"`
	Derby     bool                `json:"derby"`
	Featured  bool                `json:"featured"`
	KickoffAt time.Time           `json:"kickoff_at"`
	Markets   []domain.MarketOdds `json:"markets"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Snapshot converts the message.
func (m MatchState) Snapshot() *domain.MatchSnapshot {
	snap := &domain.MatchSnapshot{
		ID:        m.ID,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		Status:    m.Status,
		Score:     m.Score,
		Minute:    m.Minute,
		Derby:     m.Derby,
		Featured:  m.Featured,
		KickoffAt: m.KickoffAt,
		UpdatedAt: m.UpdatedAt,
	}
	snap.SetMarkets(m.Markets)
	return snap
}

// MessageSource is a committing message reader. infra.KafkaConsumer
// implements it.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StateApplier applies match state. Coordinator implements it.
type StateApplier interface {
	ApplyMatchState(ctx context.Context, snap *domain.MatchSnapshot) (Report, error)
}

// Feed consumes pushed match state and hands it to the coordinator.
// A message is committed once applied, or once it is known to be
// unprocessable. Redeliveries of an applied offset are skipped.
type Feed struct {
	source  MessageSource
	applier StateApplier
	dedupe  *guard.IdempotencyGuard
	backoff guard.Backoff
	metrics *infra.Metrics
	logger  *slog.Logger
	// pause between attempts on a message that keeps failing
	pause time.Duration
}

// NewFeed creates a Feed.
func NewFeed(source MessageSource, applier StateApplier, dedupe *guard.IdempotencyGuard, backoff guard.Backoff, metrics *infra.Metrics, logger *slog.Logger) *Feed {
	return &Feed{
		source:  source,
		applier: applier,
		dedupe:  dedupe,
		backoff: backoff,
		metrics: metrics,
		logger:  logger,
		pause:   max(backoff.MaxDelay, time.Second),
	}
}

// Run consumes until ctx is cancelled. A message that fails transiently
// is retried in place: committing a later offset would implicitly commit
// it, so the partition does not advance past it.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("match feed started")
	for {
		msg, err := f.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				f.logger.Info("match feed stopped")
				return nil
			}
			return fmt.Errorf("fetch match state: %w", err)
		}
		for {
			err := f.Handle(ctx, msg)
			if err == nil {
				break
			}
			f.logger.Error("match state not applied, holding partition",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			select {
			case <-ctx.Done():
				f.logger.Info("match feed stopped")
				return nil
			case <-time.After(f.pause):
			}
		}
	}
}

// Handle applies one message and commits it unless applying failed
// transiently.
func (f *Feed) Handle(ctx context.Context, msg kafka.Message) error {
	key := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	if res := f.dedupe.Check(ctx, key); !res.Allowed {
		f.count("duplicate")
		return f.source.CommitMessages(ctx, msg)
	}

	var state MatchState
	if err := json.Unmarshal(msg.Value, &state); err != nil {
		f.logger.Warn("dropping undecodable match state", "offset", msg.Offset, "error", err)
		f.count("invalid")
		return f.source.CommitMessages(ctx, msg)
	}

	var report Report
	err := guard.Retry(ctx, f.backoff, retryableApply, func(int) error {
		var applyErr error
		report, applyErr = f.applier.ApplyMatchState(ctx, state.Snapshot())
		return applyErr
	})
	switch {
	case domain.IsCode(err, domain.CodeValidation):
		f.logger.Warn("dropping invalid match state", "match_id", state.ID, "error", err)
		f.count("invalid")
		return f.source.CommitMessages(ctx, msg)
	case err != nil:
		f.dedupe.Remove(key)
		f.count("error")
		return err
	}

	f.count("applied")
	if state.Status == domain.MatchFinished {
		f.logger.Info("finished match applied from feed",
			"match_id", state.ID, "settled", report.Settled, "deferred", report.Deferred, "failed", report.Failed)
	}
	return f.source.CommitMessages(ctx, msg)
}

func (f *Feed) count(result string) {
	if f.metrics != nil {
		f.metrics.MatchEvents.WithLabelValues(result).Inc()
	}
}

func retryableApply(err error) bool {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Status >= 500
	}
	return true
}
