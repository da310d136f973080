// Package observability holds the Prometheus instrumentation of the API.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/pipelineapi/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ConditionalRequests *prometheus.CounterVec
	PipelineUpdates     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pipelineapi"
	}
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ConditionalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conditional_requests_total",
			Help:      "Outcome of ETag checks on pipeline requests",
		}, []string{"method", "result"}),
		PipelineUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_updates_total",
			Help:      "Pipeline update attempts by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ConditionalRequests,
		m.PipelineUpdates,
		collectors.NewGoCollector(),
	)
	return m
}

// RegisterETagStats exports the counters of an ETag cache.
func (m *Metrics) RegisterETagStats(namespace string, stats func() cache.Stats) {
	if m == nil {
		return
	}
	if namespace == "" {
		namespace = "pipelineapi"
	}
	counter := func(name, help string, pick func(cache.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "etag_cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(stats())) })
	}
	m.registry.MustRegister(
		counter("hits_total", "ETag lookups served from the cache", func(s cache.Stats) int64 { return s.Hits }),
		counter("misses_total", "ETag lookups that computed a hash", func(s cache.Stats) int64 { return s.Misses }),
		counter("overwrites_total", "ETag entries replaced after a change", func(s cache.Stats) int64 { return s.Overwrites }),
	)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordConditional counts not_modified, precondition_failed and fresh
// responses.
func (m *Metrics) RecordConditional(method, result string) {
	if m == nil {
		return
	}
	m.ConditionalRequests.WithLabelValues(method, result).Inc()
}

func (m *Metrics) RecordUpdate(outcome string) {
	if m == nil {
		return
	}
	m.PipelineUpdates.WithLabelValues(outcome).Inc()
}
