package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quad",
		Subsystem: "chat",
		Name:      "messages_persisted_total",
		Help:      "Chat messages durably appended to a room log.",
	})

	metricUploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quad",
		Subsystem: "chat",
		Name:      "upload_failures_total",
		Help:      "Chat sends aborted because an image upload failed.",
	})

	metricBroadcastDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quad",
		Subsystem: "chat",
		Name:      "broadcast_delivered_total",
		Help:      "Envelopes enqueued to member connections during fan-out.",
	})

	metricBroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quad",
		Subsystem: "chat",
		Name:      "broadcast_dropped_total",
		Help:      "Envelopes dropped during fan-out (backpressure or closing members).",
	})
)
