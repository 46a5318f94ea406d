package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	LogQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onsell",
		Name:      "log_queries_total",
		Help:      "Log viewer queries by result.",
	}, []string{"result"})

	LogQueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "onsell",
		Name:      "log_query_duration_seconds",
		Help:      "Time spent collecting and sorting log entries.",
		Buckets:   prometheus.DefBuckets,
	})

	LogExports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onsell",
		Name:      "log_exports_total",
		Help:      "Log exports by format.",
	}, []string{"format"})

	LogClears = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "onsell",
		Name:      "log_clear_total",
		Help:      "Retention clears performed.",
	})

	LogCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onsell",
		Name:      "log_cache_hits_total",
		Help:      "Parsed log file cache lookups by kind (hit, incremental, miss).",
	}, []string{"kind"})

	Impersonations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onsell",
		Name:      "impersonations_total",
		Help:      "Impersonation starts and stops by target type.",
	}, []string{"action", "target_type"})
)

// MustRegister registers every collector on reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		LogQueries,
		LogQueryDuration,
		LogExports,
		LogClears,
		LogCacheHits,
		Impersonations,
	)
}
