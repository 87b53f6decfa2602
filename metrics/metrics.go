// Package metrics registers the prometheus collectors for txscope.
//
// Collectors cover:
//   - transaction scopes (outcome, nesting, duration)
//   - connection acquisition latency
//   - statements routed through the session helpers
//   - pool connection gauges published by the connector package
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transaction outcomes.
const (
	OutcomeCommit   = "commit"
	OutcomeRollback = "rollback"
	OutcomePanic    = "panic"
	OutcomeFailed   = "failed"
)

var (
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscope_transactions_total",
			Help: "Total number of outermost transaction scopes by outcome",
		},
		[]string{"pool", "outcome"},
	)

	NestedTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscope_nested_transactions_total",
			Help: "Total number of nested (savepoint) transaction scopes",
		},
		[]string{"pool"},
	)

	AcquireDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txscope_acquire_duration_seconds",
			Help:    "Time spent waiting for a pooled connection",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"pool"},
	)

	TransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txscope_transaction_duration_seconds",
			Help:    "Duration of outermost transaction scopes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pool"},
	)

	StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscope_statements_total",
			Help: "Total number of statements executed through the session helpers",
		},
		[]string{"kind"}, // "exec", "fetch_all", "fetch_one", "fetch_value"
	)

	StatementErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txscope_statement_errors_total",
			Help: "Total number of statements that returned a driver error",
		},
		[]string{"kind"},
	)

	TrackedStatementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "txscope_tracked_statements_total",
			Help: "Total number of statements recorded by an enabled tracker",
		},
	)

	PoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txscope_pool_connections",
			Help: "Pool connections by state",
		},
		[]string{"pool", "state"}, // "open", "in_use", "idle", "max"
	)
)

// RecordTransaction records the outcome and duration of an outermost scope.
func RecordTransaction(pool, outcome string, duration time.Duration) {
	TransactionsTotal.WithLabelValues(pool, outcome).Inc()
	TransactionDuration.WithLabelValues(pool).Observe(duration.Seconds())
}

// RecordAcquire records how long an Acquire call took.
func RecordAcquire(pool string, duration time.Duration) {
	AcquireDuration.WithLabelValues(pool).Observe(duration.Seconds())
}

// RecordStatement counts a statement and, when err is non-nil, its failure.
func RecordStatement(kind string, err error) {
	StatementsTotal.WithLabelValues(kind).Inc()
	if err != nil {
		StatementErrorsTotal.WithLabelValues(kind).Inc()
	}
}
