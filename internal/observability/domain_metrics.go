package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starquery_queries_total",
			Help: "Total number of executed warehouse queries by outcome.",
		},
		[]string{"outcome"},
	)
	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starquery_rejections_total",
			Help: "Total number of candidate statements rejected by the validator.",
		},
		[]string{"reason"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "starquery_query_duration_seconds",
			Help:    "Warehouse query execution latency.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	queryRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "starquery_query_rows",
			Help:    "Rows returned per successful query.",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)
	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starquery_cache_hits_total",
			Help: "Total number of result cache hits.",
		},
	)
	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starquery_cache_misses_total",
			Help: "Total number of result cache misses.",
		},
	)
	generateRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starquery_generate_requests_total",
			Help: "Total number of natural language generation requests.",
		},
	)
	generateFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starquery_generate_failures_total",
			Help: "Total number of failed natural language generation requests.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		rejectionsTotal,
		queryDurationSeconds,
		queryRows,
		cacheHitsTotal,
		cacheMissesTotal,
		generateRequestsTotal,
		generateFailuresTotal,
	)
}

func ObserveQuery(outcome string, duration time.Duration) {
	queriesTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(duration.Seconds())
}

func ObserveQueryRows(rows int) {
	queryRows.Observe(float64(rows))
}

func IncrementRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

func IncrementCacheHit() {
	cacheHitsTotal.Inc()
}

func IncrementCacheMiss() {
	cacheMissesTotal.Inc()
}

func IncrementGenerateRequest() {
	generateRequestsTotal.Inc()
}

func IncrementGenerateFailure() {
	generateFailuresTotal.Inc()
}
