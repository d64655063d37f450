// Package metrics holds the Prometheus collectors for the poster pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequestsTotal counts adapter calls by provider, operation and outcome.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mposter_provider_requests_total",
			Help: "Total number of metadata provider calls",
		},
		[]string{"provider", "operation", "outcome"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mposter_provider_request_duration_seconds",
			Help:    "Duration of metadata provider calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	// ProviderBreakerState is 0 closed, 1 half-open, 2 open.
	ProviderBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mposter_provider_breaker_state",
			Help: "Circuit breaker state per provider",
		},
		[]string{"provider"},
	)

	// ResolutionsTotal counts orchestrator outcomes per flow (best_match, candidates, lookup).
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mposter_resolutions_total",
			Help: "Total number of title resolutions by outcome",
		},
		[]string{"flow", "outcome"},
	)

	// LedgerDecisionsTotal counts dedup checks: process, duplicate, fail_open.
	LedgerDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mposter_ledger_decisions_total",
			Help: "Total number of deduplication checks by decision",
		},
		[]string{"granularity", "decision"},
	)

	LedgerCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mposter_ledger_commits_total",
			Help: "Total number of processed marker commits by outcome",
		},
		[]string{"granularity", "outcome"},
	)

	LedgerEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mposter_ledger_evictions_total",
			Help: "Entries removed from the short-term cache",
		},
		[]string{"reason"},
	)

	// PublishesTotal counts poster deliveries; destination is primary or fallback.
	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mposter_publishes_total",
			Help: "Total number of poster deliveries by destination and outcome",
		},
		[]string{"destination", "outcome"},
	)

	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mposter_updates_total",
			Help: "Telegram updates handled by kind",
		},
		[]string{"kind"},
	)
)

// RecordProviderCall records one adapter call.
func RecordProviderCall(provider, operation, outcome string, d time.Duration) {
	ProviderRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

func SetBreakerState(provider string, state float64) {
	ProviderBreakerState.WithLabelValues(provider).Set(state)
}

func RecordResolution(flow, outcome string) {
	ResolutionsTotal.WithLabelValues(flow, outcome).Inc()
}

func RecordLedgerDecision(granularity, decision string) {
	LedgerDecisionsTotal.WithLabelValues(granularity, decision).Inc()
}

func RecordLedgerCommit(granularity string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LedgerCommitsTotal.WithLabelValues(granularity, outcome).Inc()
}

func RecordEviction(reason string, n int) {
	if n > 0 {
		LedgerEvictionsTotal.WithLabelValues(reason).Add(float64(n))
	}
}

func RecordPublish(destination string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PublishesTotal.WithLabelValues(destination, outcome).Inc()
}

func RecordUpdate(kind string) {
	UpdatesTotal.WithLabelValues(kind).Inc()
}
