// Package metrics registers the Prometheus instruments for the
// discussion service. Exposed on /metrics by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, path and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// ModerationVerdicts counts classifier outcomes by content type and
	// the canonical status they mapped to
	ModerationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_verdicts_total",
			Help: "Classifier verdicts by content type and mapped status",
		},
		[]string{"content_type", "status"},
	)

	// ModerationFailures counts classifier errors and unparseable
	// verdicts, i.e. every time the failure policy decided the status
	ModerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_failures_total",
			Help: "Classifier failures resolved by the failure policy",
		},
		[]string{"content_type"},
	)

	// EventsPublished counts events handed to the notifier by name
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events published to the in-process notifier",
		},
		[]string{"event"},
	)

	// EventsDropped counts events dropped because a subscriber's
	// buffer was full at publish time
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Events dropped for slow subscribers",
		},
		[]string{"event"},
	)

	// CacheHits and CacheMisses track the redis read-through caches
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by cache name",
		},
		[]string{"cache"},
	)
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by cache name",
		},
		[]string{"cache"},
	)
)
