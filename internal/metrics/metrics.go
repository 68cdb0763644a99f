package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_webhook_total",
			Help: "Webhook deliveries by pipeline result",
		},
		[]string{"result"}, // created|duplicate|invalid_signature|validation_error|webhook missing|storage_error
	)

	ArchivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_archived_total",
			Help: "Messages archived to ClickHouse",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		WebhookTotal,
		ArchivedTotal,
	)
}
