package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unimarket_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Business metrics
	VerificationCodesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unimarket_verification_codes_sent_total",
			Help: "Total email verification codes issued",
		},
	)

	ProductsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unimarket_products_created_total",
			Help: "Total product listings created",
		},
	)

	ChatsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unimarket_chats_created_total",
			Help: "Total chats created",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unimarket_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"transport"}, // "rest" or "ws"
	)

	BroadcastsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unimarket_broadcasts_delivered_total",
			Help: "Total new_message events delivered to live connections",
		},
	)

	// Realtime metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unimarket_ws_connections",
			Help: "Currently open websocket connections",
		},
	)
)
