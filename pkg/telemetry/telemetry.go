package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Low-overhead counters for the realtime core. Everything is registered on
// the default registry and served by promhttp from main.
var (
	ConnectionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collabd_ws_connections_opened_total",
		Help: "WebSocket connections accepted after authentication.",
	})
	ConnectionsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collabd_ws_connections_closed_total",
		Help: "WebSocket connections closed for any reason.",
	})
	OpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "collabd_ws_open_connections",
		Help: "Currently open WebSocket connections.",
	})
	FramesIn = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collabd_ws_frames_in_total",
		Help: "Inbound frames read from clients.",
	})
	FramesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collabd_ws_frames_out_total",
		Help: "Outbound frames written to clients.",
	})
	TypingDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collabd_ws_typing_dropped_total",
		Help: "TYPING frames dropped under backpressure.",
	})
	BackpressureKills = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collabd_ws_backpressure_kills_total",
		Help: "Connections closed with 1011 due to a saturated outbound queue.",
	})
	BrokerDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collabd_broker_publish_dropped_total",
		Help: "Broker publishes dropped on timeout or failed delivery.",
	})
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collabd_ws_frames_rate_limited_total",
		Help: "Inbound frames discarded by the per-connection rate limiter.",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsOpened,
		ConnectionsClosed,
		OpenConnections,
		FramesIn,
		FramesOut,
		TypingDropped,
		BackpressureKills,
		BrokerDropped,
		RateLimited,
	)
}
