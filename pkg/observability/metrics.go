// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Task outcomes reported by the dispatcher.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Metrics collects counters and gauges for the cache, the gate, the
// dispatcher and the loader. Every instance owns its registry, so two
// instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheEvictions  prometheus.Counter
	cacheRejections prometheus.Counter
	cacheBytes      prometheus.Gauge
	cacheEntries    prometheus.Gauge

	gateInUse prometheus.Gauge

	tasks      *prometheus.CounterVec
	queueDepth prometheus.Gauge

	fetchDuration *prometheus.HistogramVec
}

// NewMetrics creates a new metrics collector under the given namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Cache lookups that found an entry.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Cache lookups that found nothing.",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Entries evicted to make room for new ones.",
		}),
		cacheRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "rejections_total",
			Help: "Puts rejected because the payload exceeds capacity.",
		}),
		cacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "bytes",
			Help: "Bytes currently held by the cache.",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "entries",
			Help: "Entries currently held by the cache.",
		}),
		gateInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "gate", Name: "in_use",
			Help: "Connection slots currently held.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatcher", Name: "tasks_total",
			Help: "Tasks by outcome.",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "dispatcher", Name: "queue_depth",
			Help: "Tasks waiting for a worker.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "fetch", Name: "duration_seconds",
			Help:    "Page load latency by source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.cacheHits, m.cacheMisses, m.cacheEvictions, m.cacheRejections,
		m.cacheBytes, m.cacheEntries, m.gateInUse, m.tasks, m.queueDepth,
		m.fetchDuration,
	)
	return m
}

// Registry returns the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCacheHit records a cache hit/miss.
func (m *Metrics) RecordCacheHit(hit bool) {
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// RecordEviction records one evicted entry.
func (m *Metrics) RecordEviction() {
	m.cacheEvictions.Inc()
}

// RecordRejection records a put that could never fit.
func (m *Metrics) RecordRejection() {
	m.cacheRejections.Inc()
}

// SetCacheUsage publishes the current cache footprint.
func (m *Metrics) SetCacheUsage(bytes int64, entries int) {
	m.cacheBytes.Set(float64(bytes))
	m.cacheEntries.Set(float64(entries))
}

// RecordAcquire records a successful gate acquisition.
func (m *Metrics) RecordAcquire() {
	m.gateInUse.Inc()
}

// RecordRelease records a gate release.
func (m *Metrics) RecordRelease() {
	m.gateInUse.Dec()
}

// RecordTask records a task outcome.
func (m *Metrics) RecordTask(outcome string) {
	m.tasks.WithLabelValues(outcome).Inc()
}

// SetQueueDepth publishes the number of queued tasks.
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// ObserveFetch records how long a load took and where it was served from.
func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// WriteText writes every registered metric in the text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
