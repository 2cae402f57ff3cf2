package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for payment attempts and outcome delivery.
// All methods tolerate a nil receiver so tests can run without registration.
type Metrics struct {
	Attempts         *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	Outcomes         *prometheus.CounterVec
	DuplicateSignals *prometheus.CounterVec
	AwaitingIntents  prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remitflow_payment_attempts_total",
			Help: "Payment attempts started, by strategy and presentation mode",
		}, []string{"strategy", "mode"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remitflow_payment_provider_errors_total",
			Help: "Provider integration failures, by provider and error code",
		}, []string{"provider", "code"}),
		ProviderDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remitflow_payment_provider_call_duration_seconds",
			Help:    "Duration of provider calls by operation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remitflow_payment_outcomes_total",
			Help: "Terminal outcomes delivered, by delivery mode and kind",
		}, []string{"mode", "kind"}),
		DuplicateSignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remitflow_payment_duplicate_signals_total",
			Help: "Outcome signals ignored because the intent was already resolved",
		}, []string{"mode"}),
		AwaitingIntents: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "remitflow_payment_outcome_waiters",
			Help: "Callers currently long-polling for an outcome",
		}),
	}
}

func (m *Metrics) IncrementAttempt(strategy, mode string) {
	if m != nil {
		m.Attempts.WithLabelValues(strategy, mode).Inc()
	}
}

func (m *Metrics) IncrementProviderError(provider, code string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(provider, code).Inc()
	}
}

// ObserveProviderCall records the duration of a provider call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveProviderCall(operation string, start time.Time) {
	if m != nil {
		m.ProviderDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncrementOutcome(mode, kind string) {
	if m != nil {
		m.Outcomes.WithLabelValues(mode, kind).Inc()
	}
}

func (m *Metrics) IncrementDuplicate(mode string) {
	if m != nil {
		m.DuplicateSignals.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) WaiterStarted() {
	if m != nil {
		m.AwaitingIntents.Inc()
	}
}

func (m *Metrics) WaiterDone() {
	if m != nil {
		m.AwaitingIntents.Dec()
	}
}
