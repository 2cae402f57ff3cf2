package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the transfer wizard.
// Tracks session starts, step transitions, gate blocks and store conflicts.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	Transitions       *prometheus.CounterVec
	Blocked           *prometheus.CounterVec
	Completed         *prometheus.CounterVec
	StoreConflicts    prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all wizard metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remitflow_transfer_sessions_started_total",
			Help: "Total number of transfer sessions started",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remitflow_transfer_step_transitions_total",
			Help: "Wizard step transitions, by destination step",
		}, []string{"to"}),
		Blocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remitflow_transfer_transitions_blocked_total",
			Help: "Forward transitions refused by a step gate, by failing step",
		}, []string{"step"}),
		Completed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remitflow_transfer_completed_total",
			Help: "Transfers that reached the Complete step, by category",
		}, []string{"category"}),
		StoreConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remitflow_transfer_store_conflicts_total",
			Help: "Optimistic version conflicts retried when saving a session",
		}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remitflow_transfer_operation_duration_seconds",
			Help:    "Duration of wizard operations including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementSessionsStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) IncrementTransition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncrementBlocked(step string) {
	if m == nil {
		return
	}
	m.Blocked.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementCompleted(category string) {
	if m == nil {
		return
	}
	m.Completed.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementStoreConflict() {
	if m == nil {
		return
	}
	m.StoreConflicts.Inc()
}

// ObserveOperation records the duration of a wizard operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
