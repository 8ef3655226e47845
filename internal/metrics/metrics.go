package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_feed_fetch_total",
			Help: "NOAA feed fetches by product and outcome",
		},
		[]string{"feed", "outcome"},
	)

	SnapshotPublishes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kp_snapshot_publish_total",
			Help: "Display snapshots published by the coordinator",
		},
	)

	CurrentKp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kp_current_value",
			Help: "Kp value of the record selected as current",
		},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_job_runs_total",
			Help: "Background job runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_notifications_sent_total",
			Help: "Storm notifications dispatched by sink",
		},
		[]string{"sink"},
	)

	LocationSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_location_search_total",
			Help: "Geocoding searches by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
