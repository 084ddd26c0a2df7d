package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo call rate. Watch for: error vs success ratio.
	ProviderCallsTotal *prometheus.CounterVec

	// Open-Meteo latency per attempt. Watch for: p95 > 2s (upstream degradation).
	ProviderCallDuration *prometheus.HistogramVec

	// Retry attempts against the provider. Watch for: high retries = unstable upstream.
	ProviderRetriesTotal prometheus.Counter

	// Responses served per source (cache, provider, cache-fallback).
	ResponsesBySourceTotal *prometheus.CounterVec

	// Cache store errors per operation (get, set, clear).
	CacheErrorsTotal *prometheus.CounterVec

	// Requests denied by the fixed-window rate limiter (429).
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state (0 closed, 1 half-open, 2 open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker state transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Pre-warm runs and per-city pre-warm failures.
	PrewarmRunsTotal   prometheus.Counter
	PrewarmErrorsTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of Open-Meteo API call attempts",
		},
		[]string{"status"},
	)
	ProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerCallDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per attempt)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	ProviderRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "providerRetriesTotal",
			Help: "Total number of retry attempts for provider calls",
		},
	)
	ResponsesBySourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responsesBySourceTotal",
			Help: "Weather responses served, by source (cache, provider, cache-fallback)",
		},
		[]string{"source"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache store failures by operation (get, set, clear)",
		},
		[]string{"operation"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
	PrewarmRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prewarmRunsTotal",
			Help: "Total number of pre-warm sweeps",
		},
	)
	PrewarmErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prewarmErrorsTotal",
			Help: "Total number of failed per-city pre-warm requests",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ProviderCallsTotal, ProviderCallDuration, ProviderRetriesTotal,
		ResponsesBySourceTotal, CacheErrorsTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		PrewarmRunsTotal, PrewarmErrorsTotal,
	)
}

// RecordCircuitBreakerTransition updates the breaker gauge and transition
// counter. stateValue: 0 closed, 1 half-open, 2 open.
func RecordCircuitBreakerTransition(name, from, to string, stateValue float64) {
	CircuitBreakerTransitionsTotal.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(stateValue)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
