package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatrelay",
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Current number of open WebSocket connections.",
		},
	)

	FramesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "relay",
			Name:      "frames_published_total",
			Help:      "Total number of frames published to the broker.",
		},
	)

	PublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "relay",
			Name:      "publish_failures_total",
			Help:      "Total number of failed broker publishes.",
		},
	)

	FramesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "relay",
			Name:      "frames_delivered_total",
			Help:      "Total number of relayed frames delivered to local rooms.",
		},
	)

	MessagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatrelay",
			Subsystem: "chat",
			Name:      "messages_dropped_total",
			Help:      "Total number of messages dropped because the persistence queue was full.",
		},
	)
)

func init() {
	Registry.MustRegister(
		ActiveConnections,
		FramesPublished,
		PublishFailures,
		FramesDelivered,
		MessagesDropped,
	)
}

// Handler serves the registry for Prometheus scrapes.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
