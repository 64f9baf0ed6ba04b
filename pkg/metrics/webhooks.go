package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records inbound webhook processing outcomes.
type WebhookMetrics struct {
	processed  *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	rejected   *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Webhook events accepted and handled.",
	}, []string{"source"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook events skipped because the event id was already seen.",
	}, []string{"source"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Webhook events rejected before handling, e.g. bad signatures.",
	}, []string{"source", "reason"})
	reg.MustRegister(processed, duplicates, rejected)
	return &WebhookMetrics{
		processed:  processed,
		duplicates: duplicates,
		rejected:   rejected,
	}
}

// IncProcessed increments the processed counter for the source.
func (m *WebhookMetrics) IncProcessed(source string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncDuplicate increments the duplicate counter for the source.
func (m *WebhookMetrics) IncDuplicate(source string) {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncRejected increments the rejected counter for the source and reason.
func (m *WebhookMetrics) IncRejected(source, reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(source), normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
