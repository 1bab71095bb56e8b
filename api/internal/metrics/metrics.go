package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pestai_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pestai_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"method", "path"})

	// Gemini API
	ModelCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pestai_model_calls_total",
		Help: "Upstream model invocations, one per attempt.",
	})
	ModelErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pestai_model_errors_total",
		Help: "Failed upstream model attempts by error kind.",
	}, []string{"kind"})
	ModelLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pestai_model_latency_seconds",
		Help:    "Upstream model latency per attempt.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
	})
	ModelRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pestai_model_retries_total",
		Help: "Retries scheduled after transient upstream failures, by error kind.",
	}, []string{"kind"})

	// Quota preservation
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pestai_cache_hits_total",
		Help: "Analyses served from the response cache.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pestai_cache_misses_total",
		Help: "Cache probes that required a model call.",
	})
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pestai_cache_errors_total",
		Help: "Cache backend failures by operation.",
	}, []string{"op"})
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pestai_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})
	RateLimitClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pestai_rate_limit_clients",
		Help: "Client identities currently tracked by the rate limiter.",
	})

	// Outcomes
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pestai_analyses_total",
		Help: "Analysis requests by outcome.",
	}, []string{"outcome"})
	ArchiveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pestai_archive_errors_total",
		Help: "Failed writes to the analysis archive.",
	})
)
