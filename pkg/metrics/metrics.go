package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch results
const (
	ResultInvoked = "invoked"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Option lookup sources
const (
	SourceQueue   = "queue"
	SourceCache   = "cache"
	SourceAbsent  = "absent"
	SourceStorage = "storage"
	SourceMiss    = "miss"
	SourceError   = "error"
)

var (
	// Dispatcher metrics
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addonkit_dispatch_total",
			Help: "Listener dispatches by result (invoked, failed, skipped)",
		},
		[]string{"result"},
	)

	// Options store metrics
	OptionLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addonkit_option_lookups_total",
			Help: "Option lookups by resolving tier",
		},
		[]string{"source"},
	)

	OptionFlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addonkit_option_flushes_total",
			Help: "Write-queue flushes",
		},
	)

	OptionFlushedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addonkit_option_flushed_rows_total",
			Help: "Option rows written by flushes",
		},
	)

	OptionFlushErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addonkit_option_flush_errors_total",
			Help: "Flush batches or records skipped because of errors",
		},
	)

	// Profiler metrics
	ProfileSpanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addonkit_profile_span_seconds",
			Help:    "Duration of ended profiler spans in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"group"},
	)

	// Service metrics
	ServiceRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addonkit_service_run_seconds",
			Help:    "Time taken by runnable services in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(OptionLookupsTotal)
	prometheus.MustRegister(OptionFlushesTotal)
	prometheus.MustRegister(OptionFlushedRowsTotal)
	prometheus.MustRegister(OptionFlushErrorsTotal)
	prometheus.MustRegister(ProfileSpanDuration)
	prometheus.MustRegister(ServiceRunDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
