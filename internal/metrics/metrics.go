package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Arbitration metrics
var (
	// DecisionsTotal tracks arbitration outcomes by action and reason tag
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Arbitration decisions by action and reason",
		},
		[]string{"action", "reason"},
	)

	// ArbitrationDuration tracks end-to-end signal processing latency
	ArbitrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gate_arbitration_duration_seconds",
			Help:    "Foreground signal arbitration duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// StorageFailOpenTotal counts persistence reads that failed and were
	// replaced by fail-open defaults
	StorageFailOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_storage_failopen_total",
			Help: "Persistence read failures answered with fail-open defaults",
		},
		[]string{"component"},
	)
)

// Quota metrics
var (
	// QuotaGrantsTotal counts quick-task grants
	QuotaGrantsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_quota_grants_total",
			Help: "Total quick-task quota grants",
		},
	)

	// QuotaRefillsTotal counts lazy window refills
	QuotaRefillsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_quota_refills_total",
			Help: "Total lazy quota window refills",
		},
	)
)

// Flow metrics
var (
	// FlowTransitionsTotal tracks applied state machine transitions
	FlowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_flow_transitions_total",
			Help: "Applied intervention flow transitions by from/to state",
		},
		[]string{"from", "to"},
	)

	// FlowIgnoredEventsTotal tracks no-op transitions (wrong state, stale ticks)
	FlowIgnoredEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_flow_ignored_events_total",
			Help: "Flow events ignored by the state-match guard",
		},
	)

	// PreservedResumesTotal counts interventions resumed from a durable snapshot
	PreservedResumesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_preserved_resumes_total",
			Help: "Interventions resumed from a preserved snapshot",
		},
	)
)

// Surface metrics
var (
	// SurfacePushesTotal tracks launch instructions pushed to presentation clients
	SurfacePushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_surface_pushes_total",
			Help: "Surface launch pushes by wake reason",
		},
		[]string{"wake_reason"},
	)

	// SurfaceClientsConnected tracks connected presentation clients
	SurfaceClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gate_surface_clients_connected",
			Help: "Currently connected presentation WebSocket clients",
		},
	)
)
