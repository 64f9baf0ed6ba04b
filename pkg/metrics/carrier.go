package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CarrierMetrics records outbound carrier API call outcomes.
type CarrierMetrics struct {
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewCarrierMetrics registers the carrier metrics on the provided registerer.
func NewCarrierMetrics(reg prometheus.Registerer) *CarrierMetrics {
	if reg == nil {
		return &CarrierMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrier_call_duration_seconds",
		Help:    "Duration of carrier API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"carrier", "operation"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_call_retries",
		Help: "Carrier API calls retried after a transient failure.",
	}, []string{"carrier", "operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_call_failures",
		Help: "Carrier API calls that failed permanently.",
	}, []string{"carrier", "operation"})
	reg.MustRegister(duration, retries, failures)
	return &CarrierMetrics{
		duration: duration,
		retries:  retries,
		failures: failures,
	}
}

// ObserveDuration records the duration of a carrier call.
func (m *CarrierMetrics) ObserveDuration(carrier, operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(carrier), normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncRetry increments the retry counter for the carrier operation.
func (m *CarrierMetrics) IncRetry(carrier, operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(carrier), normalizeLabel(operation)).Inc()
}

// IncFailure increments the permanent failure counter for the carrier operation.
func (m *CarrierMetrics) IncFailure(carrier, operation string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(carrier), normalizeLabel(operation)).Inc()
}
