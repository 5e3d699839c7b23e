// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "logship"

// Metrics holds the collectors for one logger.
type Metrics struct {
	registry *prometheus.Registry

	recordsEnqueued  prometheus.Counter
	recordsEvicted   prometheus.Counter
	enqueueOverflows prometheus.Counter
	recordsDelivered prometheus.Counter
	deliveryFailures prometheus.Counter
	recordsSpilled   prometheus.Counter
	spillDropped     prometheus.Counter
	spillTruncations prometheus.Counter
	backlogReplayed  *prometheus.CounterVec

	queueDepth  prometheus.Gauge
	workerState prometheus.Gauge
}

// New creates a Metrics with its own registry. An empty namespace
// means DefaultNamespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		registry:         prometheus.NewRegistry(),
		recordsEnqueued:  counter("records_enqueued_total", "Records (after chunking) accepted into the queue."),
		recordsEvicted:   counter("records_evicted_total", "Queued records evicted to make room for newer ones."),
		enqueueOverflows: counter("enqueue_overflows_total", "Records rejected because the queue stayed full."),
		recordsDelivered: counter("records_delivered_total", "Records written to the collector."),
		deliveryFailures: counter("delivery_failures_total", "Failed write attempts to the collector."),
		recordsSpilled:   counter("records_spilled_total", "Records appended to the spill store."),
		spillDropped:     counter("spill_dropped_total", "Records lost because the spill store could not persist them."),
		spillTruncations: counter("spill_truncations_total", "Times the spill store was truncated at its size cap."),
		backlogReplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backlog_replayed_total",
			Help:      "Stored records delivered after startup or after recovery.",
		}, []string{"source"}),
		queueDepth:  gauge("queue_depth", "Records currently queued."),
		workerState: gauge("worker_state", "Delivery worker state (0 disconnected, 1 connecting, 2 connected, 3 broken)."),
	}

	m.registry.MustRegister(
		m.recordsEnqueued, m.recordsEvicted, m.enqueueOverflows,
		m.recordsDelivered, m.deliveryFailures,
		m.recordsSpilled, m.spillDropped, m.spillTruncations,
		m.backlogReplayed, m.queueDepth, m.workerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. On
// a nil Metrics it serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Backlog sources for RecordReplayed.
const (
	SourceStartup  = "startup"
	SourceRecovery = "recovery"
)

func (m *Metrics) RecordEnqueued() { apply(m, func() { m.recordsEnqueued.Inc() }) }
func (m *Metrics) RecordEvicted() { apply(m, func() { m.recordsEvicted.Inc() }) }
func (m *Metrics) EnqueueOverflow() { apply(m, func() { m.enqueueOverflows.Inc() }) }
func (m *Metrics) RecordDelivered() { apply(m, func() { m.recordsDelivered.Inc() }) }
func (m *Metrics) DeliveryFailure() { apply(m, func() { m.deliveryFailures.Inc() }) }
func (m *Metrics) RecordSpilled() { apply(m, func() { m.recordsSpilled.Inc() }) }
func (m *Metrics) SpillDropped() { apply(m, func() { m.spillDropped.Inc() }) }
func (m *Metrics) SpillTruncated() { apply(m, func() { m.spillTruncations.Inc() }) }

// RecordReplayed counts one stored record delivered from source
// (SourceStartup or SourceRecovery).
func (m *Metrics) RecordReplayed(source string) {
	apply(m, func() { m.backlogReplayed.WithLabelValues(source).Inc() })
}

// SetQueueDepth records the current queue length.
func (m *Metrics) SetQueueDepth(depth int) {
	apply(m, func() { m.queueDepth.Set(float64(depth)) })
}

// SetWorkerState records the worker's state as its ordinal.
func (m *Metrics) SetWorkerState(state int) {
	apply(m, func() { m.workerState.Set(float64(state)) })
}

func apply(m *Metrics, update func()) {
	if m != nil {
		update()
	}
}
