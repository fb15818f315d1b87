package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler returns the HTTP handler that serves the default
// Prometheus registry, for mounting at /metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Metrics holds the filter's exported Prometheus instrumentation.
type Metrics struct {
	PredictionsTotal  prometheus.Counter
	UpdatesTotal      *prometheus.CounterVec
	UpdatesRejected   *prometheus.CounterVec
	QuaternionNorm    prometheus.Gauge
	DegradedAttitude  prometheus.Gauge
	PositionVariance  prometheus.Gauge
	StreamClients     prometheus.Gauge
	StreamMessagesOut prometheus.Counter
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the process-wide Metrics instance, registering its
// collectors with the default registry on first call.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.PredictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "navekf",
		Name:      "predictions_total",
		Help:      "Total number of Predict calls that succeeded.",
	})

	m.UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "navekf",
		Name:      "updates_total",
		Help:      "Total number of measurement updates applied, by sensor type.",
	}, []string{"sensor"})

	m.UpdatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "navekf",
		Name:      "updates_rejected_total",
		Help:      "Total number of measurement updates rejected, by sensor type and reason.",
	}, []string{"sensor", "reason"})

	m.QuaternionNorm = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "navekf",
		Name:      "quaternion_norm",
		Help:      "Current attitude quaternion norm, expected to stay within 1e-6 of 1.",
	})

	m.DegradedAttitude = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "navekf",
		Name:      "degraded_attitude",
		Help:      "1 if the filter has ever fallen back to the identity attitude, else 0.",
	})

	m.PositionVariance = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "navekf",
		Name:      "position_variance_trace",
		Help:      "Trace of the position block of the state covariance.",
	})

	m.StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "navekf",
		Subsystem: "stream",
		Name:      "clients",
		Help:      "Number of connected live-feed WebSocket clients.",
	})

	m.StreamMessagesOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "navekf",
		Subsystem: "stream",
		Name:      "messages_sent_total",
		Help:      "Total number of telemetry messages sent to live-feed clients.",
	})

	return m
}
