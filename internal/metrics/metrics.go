// Package metrics registers the Prometheus collectors for the chat service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks currently open WebSocket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "citychat_connections_active",
		Help: "Number of currently open WebSocket connections.",
	})

	// MessagesTotal counts chat messages by outcome.
	// result is one of: delivered, blocked, rejected.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citychat_messages_total",
		Help: "Chat messages processed, partitioned by result.",
	}, []string{"result"})

	// MatchesTotal counts successfully established chats.
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citychat_matches_total",
		Help: "Chats established by the matchmaker.",
	})

	// ReportsTotal counts abuse reports filed.
	ReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citychat_reports_total",
		Help: "Abuse reports filed by users.",
	})

	// GeoLookupsTotal counts city lookups by provider and result.
	GeoLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citychat_geo_lookups_total",
		Help: "Reverse geocoding lookups, partitioned by provider and result.",
	}, []string{"provider", "result"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
