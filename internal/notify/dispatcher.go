package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/guard"
	"github.com/betpoints/platform/internal/infra"
)

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	Backoff       guard.Backoff
	FailThreshold int
	ResetTimeout  time.Duration
	// Timeout bounds one sink call, retries included.
	Timeout time.Duration
}

// Dispatcher queues settled bets and delivers them to every sink from a
// pool of workers. A full queue drops the notification rather than
// blocking the settler. Each sink gets a bounded retry and its own
// circuit.
type Dispatcher struct {
	cfg     DispatcherConfig
	sinks   []Sink
	queue   chan *domain.Bet
	circuit *guard.CircuitBreaker
	metrics *infra.Metrics
	logger  *slog.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher. Call Start before use.
func NewDispatcher(cfg DispatcherConfig, sinks []Sink, metrics *infra.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		cfg:     cfg,
		sinks:   sinks,
		queue:   make(chan *domain.Bet, cfg.QueueSize),
		circuit: guard.NewCircuitBreaker(cfg.FailThreshold, cfg.ResetTimeout),
		metrics: metrics,
		logger:  logger,
	}
}

// Start launches the workers. They exit once Close has drained the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// OnBetSettled enqueues a bet without blocking.
func (d *Dispatcher) OnBetSettled(_ context.Context, bet *domain.Bet) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.NotifyDropped.Inc()
		return
	}
	select {
	case d.queue <- bet:
	default:
		d.metrics.NotifyDropped.Inc()
		d.logger.Warn("notification queue full, dropping", "bet_id", bet.ID)
	}
}

// Close stops accepting notifications and waits for queued ones.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for bet := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(ctx, sink, bet)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, bet *domain.Bet) {
	name := sink.Name()
	if res := d.circuit.Check(ctx, name); !res.Allowed {
		d.metrics.NotifyFailures.WithLabelValues(name).Inc()
		d.logger.Warn("notification skipped", "sink", name, "bet_id", bet.ID, "reason", res.Reason)
		return
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()
	err := guard.Retry(callCtx, d.cfg.Backoff, guard.Always, func(int) error {
		return sink.Notify(callCtx, bet)
	})
	if err != nil {
		d.circuit.RecordFailure(name)
		d.metrics.NotifyFailures.WithLabelValues(name).Inc()
		d.logger.Error("notification failed", "sink", name, "bet_id", bet.ID, "error", err)
		return
	}
	d.circuit.RecordSuccess(name)
}
