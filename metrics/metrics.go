package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curalink_http_requests_total",
			Help: "HTTP requests processed, by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curalink_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curalink_registrations_total",
			Help: "Accounts created, by role.",
		},
		[]string{"role"},
	)

	FavoritesAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curalink_favorites_added_total",
			Help: "Favorites saved, by content type.",
		},
		[]string{"content_type"},
	)

	OrphansRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curalink_orphan_favorites_removed_total",
			Help: "Favorites deleted by the sweeper because their target no longer exists.",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, Registrations, FavoritesAdded, OrphansRemoved)
}
