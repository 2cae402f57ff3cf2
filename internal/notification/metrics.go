package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for confirmation dispatch.
type Metrics struct {
	Dispatches *prometheus.CounterVec
	QueueDepth prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Dispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remitflow_notification_dispatches_total",
			Help: "Confirmation dispatch results (sent, failed, skipped, dropped)",
		}, []string{"result"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "remitflow_notification_queue_depth",
			Help: "Confirmations waiting for dispatch",
		}),
	}
}

func (m *Metrics) IncDispatch(result string) {
	if m != nil {
		m.Dispatches.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
