package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	slotState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "buddyd",
			Subsystem: "slot",
			Name:      "state",
			Help:      "Current slot state (1 for the active state, 0 otherwise)",
		},
		[]string{"slot", "state"},
	)

	slotStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buddyd",
			Subsystem: "slot",
			Name:      "starts_total",
			Help:      "Start requests by outcome",
		},
		[]string{"slot", "outcome"},
	)

	slotCrashesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buddyd",
			Subsystem: "slot",
			Name:      "crashes_total",
			Help:      "Processes that exited while ready",
		},
		[]string{"slot"},
	)

	slotReadySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "buddyd",
			Subsystem: "slot",
			Name:      "ready_seconds",
			Help:      "Time from spawn to ready marker",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"slot"},
	)
)

func init() {
	prometheus.MustRegister(slotState, slotStartsTotal, slotCrashesTotal, slotReadySeconds)
}

// Start outcomes.
const (
	outcomeReady          = "ready"
	outcomeAlreadyRunning = "already_running"
	outcomeExternal       = "external"
	outcomeConfigError    = "config_error"
	outcomeSpawnError     = "spawn_error"
)

func observeState(slot string, st State) {
	for _, s := range allStates {
		v := 0.0
		if s == st {
			v = 1
		}
		slotState.WithLabelValues(slot, string(s)).Set(v)
	}
}
