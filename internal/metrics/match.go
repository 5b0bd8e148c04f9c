package metrics

import "github.com/prometheus/client_golang/prometheus"

// Matching Prometheus metrics.
var (
	MatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchdex",
			Name:      "match_requests_total",
			Help:      "Total number of match queries",
		},
		[]string{"status"},
	)

	MatchRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matchdex",
			Name:      "match_request_duration_seconds",
			Help:      "Match query duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	MatchCandidatesScored = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matchdex",
			Name:      "match_candidates_scored",
			Help:      "Candidates scored per match query after index retrieval",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	MatchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchdex",
			Name:      "match_cache_total",
			Help:      "Match result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IndexSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "matchdex",
			Name:      "index_size",
			Help:      "Number of vectors currently indexed",
		},
		[]string{"kind"}, // "candidate" / "job"
	)
)

var matchMetricsRegistered bool

// RegisterMatchMetrics registers Prometheus matching metrics. Must be called once from main.
func RegisterMatchMetrics() {
	if matchMetricsRegistered {
		return
	}
	prometheus.MustRegister(MatchRequestsTotal)
	prometheus.MustRegister(MatchRequestDuration)
	prometheus.MustRegister(MatchCandidatesScored)
	prometheus.MustRegister(MatchCacheTotal)
	prometheus.MustRegister(IndexSize)
	matchMetricsRegistered = true
}
