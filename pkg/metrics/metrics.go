package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RealtimeConnections tracks websocket connections currently joined to a room.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "steams_realtime_connections",
			Help: "Number of live websocket connections joined to a user room",
		},
	)

	// BroadcastEvents counts room deliveries by outcome (delivered|dropped).
	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steams_broadcast_events_total",
			Help: "Total number of events enqueued to room connections",
		},
		[]string{"event", "result"},
	)

	// MessagesSent counts messages accepted by the message channel.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "steams_messages_sent_total",
			Help: "Total number of persisted direct messages",
		},
	)

	// PushDeliveries counts push attempts by result (delivered|gone|transient|auth).
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steams_push_deliveries_total",
			Help: "Total number of push delivery attempts",
		},
		[]string{"result"},
	)

	// PushSubscriptionsPruned counts subscriptions removed after a gone response.
	PushSubscriptionsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "steams_push_subscriptions_pruned_total",
			Help: "Total number of push subscriptions removed because the endpoint is gone",
		},
	)

	// PushLatency measures individual push attempt latency.
	PushLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "steams_push_latency_seconds",
			Help:    "Push service round trip latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steams_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
