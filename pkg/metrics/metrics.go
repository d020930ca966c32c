package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// ============================================
	// Provider metrics
	// ============================================
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_provider_requests_total",
			Help: "Total number of quote requests sent to providers",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_engine_provider_latency_seconds",
			Help:    "Provider quote latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swap_engine_provider_healthy",
			Help: "Provider health (1=healthy, 0=unhealthy)",
		},
		[]string{"provider"},
	)

	// ============================================
	// Quote cache metrics
	// ============================================
	QuoteCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_quote_cache_lookups_total",
			Help: "Quote cache lookups by result",
		},
		[]string{"result"},
	)

	// ============================================
	// Lifecycle metrics
	// ============================================
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_lifecycle_transitions_total",
			Help: "Swap lifecycle state transitions",
		},
		[]string{"state"},
	)

	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_engine_broadcasts_total",
			Help: "Broadcast attempts by chain and outcome",
		},
		[]string{"chain", "outcome"},
	)
)

// ObserveProvider records one provider call
func ObserveProvider(provider string, took time.Duration, err error) {
	outcome := "success"
	healthy := 1.0
	if err != nil {
		outcome = "failure"
		healthy = 0
	}
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(took.Seconds())
	ProviderHealthy.WithLabelValues(provider).Set(healthy)
}

// Serve exposes /metrics on addr until the server fails
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).WithField("addr", addr).Error("Metrics server stopped")
		}
	}()
}
