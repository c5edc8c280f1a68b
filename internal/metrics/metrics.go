package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business metrics
var (
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_transactions_total",
			Help: "Total number of completed shop transactions",
		},
		[]string{"direction"},
	)

	TransactionVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_transaction_volume_total",
			Help: "Total pre-tax value of completed shop transactions",
		},
		[]string{"direction", "currency"},
	)

	TaxCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_tax_collected_total",
			Help: "Total tax credited to the collection account",
		},
	)

	TaxDestroyed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_tax_destroyed_total",
			Help: "Total tax removed from the economy with no collection account",
		},
	)
)

// Lifecycle metrics
var (
	ShopsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shops_expired_total",
			Help: "Total player shops flagged as expired by the rental sweep",
		},
	)

	ShopsRenewed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shops_renewed_total",
			Help: "Total player shops auto-renewed by the rental sweep",
		},
	)
)

// Persistence metrics
var (
	SnapshotSaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_saves_total",
			Help: "Total successful snapshot document saves",
		},
	)

	SnapshotFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_failures_total",
			Help: "Total failed snapshot document saves",
		},
	)

	MirrorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relational_mirror_failures_total",
			Help: "Total relational mirror writes that failed and were skipped",
		},
	)

	LedgerAppendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transaction_ledger_append_failures_total",
			Help: "Total transaction ledger appends that failed, leaving a history gap",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)
