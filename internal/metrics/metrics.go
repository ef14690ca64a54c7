package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squadchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "squadchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squadchat_rate_limit_hits_total",
			Help: "Requests or live commands rejected by a rate limiter",
		},
		[]string{"transport"}, // "http" or "ws"
	)

	// Messaging metrics
	MessagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "squadchat_messages_appended_total",
			Help: "Messages durably appended to the log",
		},
	)

	AppendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squadchat_append_failures_total",
			Help: "Append attempts that failed",
		},
		[]string{"code"},
	)

	BroadcastDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "squadchat_broadcast_deliveries_total",
			Help: "Messages enqueued to live connections",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "squadchat_broadcast_dropped_total",
			Help: "Deliveries skipped because the connection was slow or closed",
		},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "squadchat_live_connections",
			Help: "Currently registered live connections",
		},
	)

	RoomSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "squadchat_room_subscriptions",
			Help: "Current connection-to-room subscriptions",
		},
	)
)
