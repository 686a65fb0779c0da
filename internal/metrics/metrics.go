// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics provides Prometheus metrics for compile sessions and the schema cache.
// All recording methods are safe on a nil *Collector so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes.
const (
	OutcomeComplete = "complete"
	OutcomeFailed   = "failed"
)

// Collector holds the CLI's Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	SessionsTotal   *prometheus.CounterVec
	ResponsesTotal  *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	CompileDuration prometheus.Histogram
}

// New creates a collector with a fresh registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "malloy",
				Name:      "compile_sessions_total",
				Help:      "Total number of compile sessions by outcome",
			},
			[]string{"outcome"},
		),
		ResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "malloy",
				Name:      "compile_responses_total",
				Help:      "Total number of compiler responses by kind",
			},
			[]string{"kind"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "malloy",
				Name:      "schema_cache_lookups_total",
				Help:      "Table schema lookups served from cache (hit) or fetched (miss)",
			},
			[]string{"connection", "result"},
		),
		CompileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "malloy",
				Name:      "compile_duration_seconds",
				Help:      "Compile session duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
	}
}

// SessionFinished records a finished session.
func (c *Collector) SessionFinished(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.SessionsTotal.WithLabelValues(outcome).Inc()
	c.CompileDuration.Observe(elapsed.Seconds())
}

// ResponseReceived records one compiler response.
func (c *Collector) ResponseReceived(kind string) {
	if c == nil {
		return
	}
	c.ResponsesTotal.WithLabelValues(kind).Inc()
}

// CacheLookup records hits and misses for one schema cache lookup.
func (c *Collector) CacheLookup(connection string, hits, misses int) {
	if c == nil {
		return
	}
	if hits > 0 {
		c.CacheLookups.WithLabelValues(connection, "hit").Add(float64(hits))
	}
	if misses > 0 {
		c.CacheLookups.WithLabelValues(connection, "miss").Add(float64(misses))
	}
}

// Registry returns the registry the collector is registered on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
