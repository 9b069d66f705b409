// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	MutationsTotal       *prometheus.CounterVec
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	TagsPerPost          prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	LiveUsers            prometheus.Gauge
	LivePosts            prometheus.Gauge
	LiveTopics           prometheus.Gauge
	CascadeDeletedPosts  prometheus.Counter
	IngestCommandsTotal  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_mutations_total",
				Help: "Engine mutations by operation (add_user, add_post, delete_user) and status.",
			},
			[]string{"operation", "status"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_queries_total",
				Help: "Engine read queries by type (user_posts, topic_posts, trending) and result (hit, empty, error).",
			},
			[]string{"query", "result"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_query_latency_seconds",
				Help:    "Engine query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
			[]string{"query", "cache_status"},
		),
		TagsPerPost: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "post_tags_count",
				Help:    "Number of distinct hashtags extracted per ingested post.",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		LiveUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_live_users",
				Help: "Number of registered users.",
			},
		),
		LivePosts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_live_posts",
				Help: "Number of live (non-tombstoned) posts.",
			},
		),
		LiveTopics: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_live_topics",
				Help: "Number of topics with at least one live post.",
			},
		),
		CascadeDeletedPosts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cascade_deleted_posts_total",
				Help: "Posts removed by user-deletion cascades.",
			},
		),
		IngestCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_commands_total",
				Help: "Kafka ingest commands processed by type and status.",
			},
			[]string{"type", "status"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MutationsTotal,
		m.QueriesTotal,
		m.QueryLatency,
		m.TagsPerPost,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.LiveUsers,
		m.LivePosts,
		m.LiveTopics,
		m.CascadeDeletedPosts,
		m.IngestCommandsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
