// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Settlement metrics, observed by the sequence coordinator and the
// transaction service. Exposed on GET /metrics.
var (
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexafx_settlements_total",
		Help: "Settlement submissions by final outcome",
	}, []string{"outcome"})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nexafx_settlement_duration_seconds",
		Help:    "Time from acquiring the sequence lock to a final settlement outcome",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	SettlementRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexafx_settlement_retries_total",
		Help: "Settlement submission attempts beyond the first",
	})

	SequenceResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexafx_sequence_resyncs_total",
		Help: "Times the cached sequence number was refetched from the ledger",
	})

	TransactionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexafx_transactions_created_total",
		Help: "Ledger entries created, by transaction type",
	}, []string{"type"})
)
