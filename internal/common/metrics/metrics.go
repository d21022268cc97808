package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receptionist_turns_total",
			Help: "Total number of turns answered, by reply source tag",
		},
		[]string{"channel", "source"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "receptionist_turn_duration_seconds",
			Help:    "Duration of turn processing in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"tier"},
	)

	IntentResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receptionist_intent_resolutions_total",
			Help: "Intent resolutions by winning cascade stage and intent",
		},
		[]string{"provenance", "intent"},
	)

	CascadeStageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receptionist_cascade_stage_errors_total",
			Help: "Cascade stage failures that were degraded instead of propagated",
		},
		[]string{"stage"},
	)

	GenerativeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receptionist_generative_calls_total",
			Help: "Generative model calls by caller and outcome",
		},
		[]string{"caller", "outcome"},
	)

	ResponseCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receptionist_response_cache_total",
			Help: "Response cache lookups by result (hit, miss, shared)",
		},
		[]string{"result"},
	)

	Commits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receptionist_commits_total",
			Help: "Order and reservation commits by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "receptionist_active_sessions",
			Help: "Number of sessions currently held by the session store",
		},
	)
)
