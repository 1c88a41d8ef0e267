package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visionmark_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visionmark_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	// Consensus
	SegmentsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionmark_segments_submitted_total",
			Help: "Total segments submitted, by category.",
		},
		[]string{"category"},
	)

	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionmark_votes_total",
			Help: "Total votes applied, by direction.",
		},
		[]string{"direction"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionmark_segment_status_transitions_total",
			Help: "Segment status changes made by overlap resolution, by target status.",
		},
		[]string{"status"},
	)

	SkipsReported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visionmark_skips_reported_total",
			Help: "Total realized skips reported by playback clients.",
		},
	)

	ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visionmark_resolve_duration_seconds",
			Help:    "Duration of per-video read-modify-write passes.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visionmark_cache_hits_total",
			Help: "Total Redis active-set cache hits.",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visionmark_cache_misses_total",
			Help: "Total Redis active-set cache misses.",
		},
	)
)

// RegisterPool exposes live pgxpool statistics. Call once at startup when
// the Postgres store is in use.
func RegisterPool(pool *pgxpool.Pool) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "visionmark_db_connection_pool_active",
				Help: "Number of active database connections.",
			},
			func() float64 {
				return float64(pool.Stat().AcquiredConns())
			},
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "visionmark_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			},
			func() float64 {
				return float64(pool.Stat().IdleConns())
			},
		),
	)
}

// RecordTransitions counts status changes produced by one resolution pass.
func RecordTransitions(statuses ...string) {
	for _, s := range statuses {
		StatusTransitions.WithLabelValues(s).Inc()
	}
}
