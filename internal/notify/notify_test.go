package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/guard"
	"github.com/betpoints/platform/internal/infra"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSink struct {
	mock.Mock
	name string
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Notify(ctx context.Context, bet *domain.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func settledBet() *domain.Bet {
	at := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)
	return &domain.Bet{
		ID: uuid.New(), UserID: uuid.New(), Kind: domain.BetSingle,
		Stake: 100, Payout: 250, Status: domain.BetWon, SettledAt: &at,
		Selections: []domain.Selection{{ID: uuid.New()}},
	}
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	bet := settledBet()
	a := &mockSink{name: "a"}
	b := &mockSink{name: "b"}
	a.On("Notify", mock.Anything, bet).Return(nil).Once()
	b.On("Notify", mock.Anything, bet).Return(nil).Once()

	d := NewDispatcher(DispatcherConfig{Workers: 1}, []Sink{a, b}, infra.NewMetrics(prometheus.NewRegistry()), discardLogger())
	d.Start(context.Background())
	d.OnBetSettled(context.Background(), bet)
	d.Close()

	a.AssertExpectations(t)
	b.AssertExpectations(t)
}

func TestDispatcher_RetriesThenGivesUp(t *testing.T) {
	bet := settledBet()
	flaky := &mockSink{name: "flaky"}
	flaky.On("Notify", mock.Anything, bet).Return(errors.New("broker down")).Times(3)
	metrics := infra.NewMetrics(prometheus.NewRegistry())

	d := NewDispatcher(DispatcherConfig{Workers: 1, Backoff: guard.Backoff{MaxAttempts: 3}}, []Sink{flaky}, metrics, discardLogger())
	d.Start(context.Background())
	d.OnBetSettled(context.Background(), bet)
	d.Close()

	flaky.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.NotifyFailures.WithLabelValues("flaky")))
}

func TestDispatcher_RecoversAfterTransientError(t *testing.T) {
	bet := settledBet()
	sink := &mockSink{name: "s"}
	sink.On("Notify", mock.Anything, bet).Return(errors.New("timeout")).Once()
	sink.On("Notify", mock.Anything, bet).Return(nil).Once()
	metrics := infra.NewMetrics(prometheus.NewRegistry())

	d := NewDispatcher(DispatcherConfig{Workers: 1, Backoff: guard.Backoff{MaxAttempts: 3}}, []Sink{sink}, metrics, discardLogger())
	d.Start(context.Background())
	d.OnBetSettled(context.Background(), bet)
	d.Close()

	sink.AssertExpectations(t)
	assert.Zero(t, testutil.ToFloat64(metrics.NotifyFailures.WithLabelValues("s")))
}

func TestDispatcher_CircuitOpensPerSink(t *testing.T) {
	broken := &mockSink{name: "broken"}
	healthy := &mockSink{name: "healthy"}
	broken.On("Notify", mock.Anything, mock.Anything).Return(errors.New("down")).Times(2)
	healthy.On("Notify", mock.Anything, mock.Anything).Return(nil).Times(4)

	d := NewDispatcher(DispatcherConfig{
		Workers:       1,
		Backoff:       guard.Backoff{MaxAttempts: 1},
		FailThreshold: 2,
		ResetTimeout:  time.Hour,
	}, []Sink{broken, healthy}, infra.NewMetrics(prometheus.NewRegistry()), discardLogger())
	d.Start(context.Background())
	for i := 0; i < 4; i++ {
		d.OnBetSettled(context.Background(), settledBet())
	}
	d.Close()

	broken.AssertExpectations(t)
	healthy.AssertExpectations(t)
	assert.Equal(t, guard.CircuitOpen, d.circuit.State("broken"))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	metrics := infra.NewMetrics(prometheus.NewRegistry())
	sink := &mockSink{name: "s"}
	sink.On("Notify", mock.Anything, mock.Anything).Return(nil)

	// Not started: nothing drains the queue.
	d := NewDispatcher(DispatcherConfig{QueueSize: 1}, []Sink{sink}, metrics, discardLogger())
	d.OnBetSettled(context.Background(), settledBet())
	d.OnBetSettled(context.Background(), settledBet())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.NotifyDropped))

	d.Start(context.Background())
	d.Close()
	sink.AssertNumberOfCalls(t, "Notify", 1)

	d.OnBetSettled(context.Background(), settledBet())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.NotifyDropped))
}

func TestKafkaSink_PublishesKeyedByUser(t *testing.T) {
	bet := settledBet()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, DefaultTopic, []byte(bet.UserID.String()), mock.MatchedBy(func(v []byte) bool {
		var msg Message
		if err := json.Unmarshal(v, &msg); err != nil {
			return false
		}
		return msg.BetID == bet.ID && msg.Status == domain.BetWon && msg.Payout == 250 && msg.Legs == 1
	})).Return(nil).Once()

	sink := NewKafkaSink(pub, "")
	require.NoError(t, sink.Notify(context.Background(), bet))
	pub.AssertExpectations(t)
}

func TestLogSink_NeverFails(t *testing.T) {
	assert.NoError(t, NewLogSink(discardLogger()).Notify(context.Background(), settledBet()))
}
