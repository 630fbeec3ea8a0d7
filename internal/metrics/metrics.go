package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatjam_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatjam_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Room metrics
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatjam_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatjam_room_joins_total",
			Help: "Total room joins",
		},
	)

	SettingsUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatjam_settings_updates_total",
			Help: "Total settings updates",
		},
		[]string{"source"}, // "request" or "channel"
	)

	ModeratorFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatjam_moderator_failovers_total",
			Help: "Total moderator failovers after a disconnect",
		},
	)

	// Session metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatjam_active_sessions",
			Help: "Currently connected sessions",
		},
	)

	// Broadcast metrics
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatjam_broadcasts_total",
			Help: "Total broadcasts emitted",
		},
		[]string{"type"},
	)

	BroadcastSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatjam_broadcast_send_failures_total",
			Help: "Per-session broadcast deliveries that failed",
		},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatjam_store_latency_seconds",
			Help:    "Room store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"op"}, // "get" or "put"
	)
)
