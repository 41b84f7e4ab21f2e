package infra

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	BetsPlaced        *prometheus.CounterVec
	PlacementRejected *prometheus.CounterVec
	Settlements       *prometheus.CounterVec
	SettledBets       *prometheus.CounterVec
	VersionConflicts  *prometheus.CounterVec
	NotifyFailures    *prometheus.CounterVec
	NotifyDropped     prometheus.Counter
	OutboxPublished   prometheus.Counter
	MatchEvents       *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BetsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betpoints_bets_placed_total", Help: "bets accepted, by kind",
		}, []string{"kind"}),
		PlacementRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betpoints_placement_rejected_total", Help: "placements rejected, by error code",
		}, []string{"code"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betpoints_settlement_attempts_total", Help: "settlement attempts, by outcome",
		}, []string{"outcome"}),
		SettledBets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betpoints_bets_settled_total", Help: "bets reaching a terminal status",
		}, []string{"status"}),
		VersionConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betpoints_version_conflicts_total", Help: "optimistic write conflicts, by operation",
		}, []string{"op"}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betpoints_notify_failures_total", Help: "notification sink failures, by sink",
		}, []string{"sink"}),
		NotifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betpoints_notify_dropped_total", Help: "notifications dropped on a full queue",
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betpoints_outbox_published_total", Help: "outbox events published to Kafka",
		}),
		MatchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betpoints_match_events_total", Help: "pushed match-state messages, by result",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betpoints_http_requests_total", Help: "API requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "betpoints_http_request_duration_seconds",
			Help:    "API request latency, by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.BetsPlaced, m.PlacementRejected, m.Settlements, m.SettledBets,
		m.VersionConflicts, m.NotifyFailures, m.NotifyDropped, m.OutboxPublished, m.MatchEvents,
		m.HTTPRequests, m.HTTPDuration)
	return m
}

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// StartMetricsServer serves /metrics and /healthz on its own port in a
// goroutine. The caller shuts the returned server down.
func StartMetricsServer(port int, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
