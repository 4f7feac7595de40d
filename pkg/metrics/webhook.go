package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts payment notification outcomes.
type WebhookMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_outcomes",
		Help: "Payment gateway notifications by processing outcome.",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)
	return &WebhookMetrics{outcomes: outcomes}
}

// IncOutcome increments the counter for the given processing outcome.
func (w *WebhookMetrics) IncOutcome(outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
