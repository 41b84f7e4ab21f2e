package infra

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic string
	key   string
}

type fakePublisher struct {
	sent   []published
	failOn int
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key, _ []byte) error {
	if f.failOn > 0 && len(f.sent)+1 == f.failOn {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, published{topic: topic, key: string(key)})
	return nil
}

func seedOutbox(t *testing.T, n int) (*memory.Store, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2026, 4, 18, 15, 0, 0, 0, time.UTC)
	bal := domain.NewBalance(uuid.New(), 100, 0, now)
	require.NoError(t, store.CreateBalance(ctx, bal))

	var events []domain.OutboxDraft
	for i := range n {
		events = append(events, domain.NewLevelUpEvent(bal.UserID, i+2, 0, 0, now))
	}
	_, err := store.ApplyLedgerEntries(ctx, bal.UserID, 0, domain.LedgerBatch{Balance: *bal, Events: events})
	require.NoError(t, err)
	return store, bal.UserID
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	store, userID := seedOutbox(t, 3)
	pub := &fakePublisher{}
	metrics := NewMetrics(prometheus.NewRegistry())
	poller := NewOutboxPoller(store, pub, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.sent, 3)
	assert.Equal(t, "betpoints.user.user.level_up", pub.sent[0].topic)
	assert.Equal(t, userID.String(), pub.sent[0].key)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.OutboxPublished))

	n, err = poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxPoller_StopsAtFirstFailure(t *testing.T) {
	store, _ := seedOutbox(t, 3)
	pub := &fakePublisher{failOn: 2}
	poller := NewOutboxPoller(store, pub, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
