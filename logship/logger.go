// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logship

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/logship/lib/clock"
	"github.com/bureau-foundation/logship/lib/config"
	"github.com/bureau-foundation/logship/lib/format"
	"github.com/bureau-foundation/logship/lib/identity"
	"github.com/bureau-foundation/logship/lib/metrics"
	"github.com/bureau-foundation/logship/lib/queue"
	"github.com/bureau-foundation/logship/lib/record"
	"github.com/bureau-foundation/logship/lib/shipper"
	"github.com/bureau-foundation/logship/lib/spill"
	"github.com/bureau-foundation/logship/transport"
)

// Logger is a running shipping pipeline.
type Logger struct {
	worker       *shipper.Worker
	metrics      *metrics.Metrics
	deviceID     string
	flushTimeout time.Duration
	logger       *slog.Logger
}

// Option adjusts how New builds the pipeline.
type Option func(*options)

type options struct {
	clock     clock.Clock
	dialer    transport.Dialer
	tlsConfig *tls.Config
	metrics   *metrics.Metrics
	tune      func(*shipper.Config)
}

// WithClock replaces the real clock for timestamps and worker waits.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDialer replaces the TCP dialer used by the transport.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithTLSConfig replaces the default TLS client configuration.
func WithTLSConfig(c *tls.Config) Option {
	return func(o *options) { o.tlsConfig = c }
}

// WithMetrics records into m instead of a fresh Metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWorkerConfig lets the caller adjust worker tunables (retry
// delays, thresholds) before the worker is created.
func WithWorkerConfig(tune func(*shipper.Config)) Option {
	return func(o *options) { o.tune = tune }
}

// New validates cfg, resolves identity, and starts the delivery
// worker. A nil logger discards diagnostics.
//
// Validation failures (including a malformed token) are returned here
// and nothing is started. A transport that cannot be built from a
// validated config is reported asynchronously: queued records are
// spilled and Log returns the error.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Logger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("logship: invalid configuration: %w", err)
	}
	dialTimeout, writeTimeout, err := cfg.Transport.Durations()
	if err != nil {
		return nil, err
	}
	flushTimeout, err := cfg.Delivery.FlushTimeoutDuration()
	if err != nil {
		return nil, err
	}

	formatOptions := format.Options{
		JSON:     cfg.Format.JSON,
		Raw:      cfg.Format.Raw,
		Severity: cfg.Format.Severity,
		Clock:    o.clock,
	}
	if cfg.Format.HostName {
		formatOptions.HostName = identity.HostName()
	}
	if cfg.Format.TraceID {
		formatOptions.TraceID = identity.TraceID()
	}
	var deviceID string
	if cfg.Identity.DeviceIDPath != "" {
		id, created, err := identity.LoadOrCreateDeviceID(cfg.Identity.DeviceIDPath)
		if err != nil {
			logger.Warn("persisting device id failed, using it for this process only",
				"path", cfg.Identity.DeviceIDPath,
				"error", err,
			)
		} else if created {
			logger.Info("generated device id", "device_id", id, "path", cfg.Identity.DeviceIDPath)
		}
		deviceID = id
	}
	if cfg.Format.DeviceID {
		formatOptions.DeviceID = deviceID
	}

	m := o.metrics
	if m == nil {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	store, err := spill.Open(cfg.Spill.Path, spill.Options{
		MaxBytes:   cfg.Spill.MaxBytes,
		Logger:     logger.With("component", "spill"),
		OnTruncate: func(int64) { m.SpillTruncated() },
	})
	if err != nil {
		return nil, err
	}

	ingest := queue.New(queue.Options{
		Capacity: cfg.Queue.Capacity,
		Clock:    o.clock,
		OnEvict:  func(record.Record) { m.RecordEvicted() },
	})

	transportConfig := transport.Config{
		Mode:         transport.Mode(cfg.Transport.Mode),
		Address:      cfg.Transport.Address,
		TLS:          cfg.Transport.TLS,
		TLSConfig:    o.tlsConfig,
		Token:        cfg.Transport.Token,
		Endpoint:     cfg.Transport.Endpoint,
		Compress:     cfg.Transport.Compress,
		DialTimeout:  dialTimeout,
		WriteTimeout: writeTimeout,
		Dialer:       o.dialer,
	}
	workerConfig := shipper.Config{
		Queue:     ingest,
		Store:     store,
		Dial:      func() (transport.Transport, error) { return transport.New(transportConfig) },
		Formatter: format.New(formatOptions),
		Clock:     o.clock,
		Logger:    logger.With("component", "shipper"),
		Metrics:   m,
	}
	if o.tune != nil {
		o.tune(&workerConfig)
	}
	worker, err := shipper.New(workerConfig)
	if err != nil {
		return nil, err
	}
	worker.Start()

	logger.Info("log shipping started",
		"mode", cfg.Transport.Mode,
		"address", cfg.Transport.Address,
		"endpoint", cfg.Transport.Endpoint,
		"spill_path", cfg.Spill.Path,
		"queue_capacity", ingest.Capacity(),
	)

	return &Logger{
		worker:       worker,
		metrics:      m,
		deviceID:     deviceID,
		flushTimeout: flushTimeout,
		logger:       logger,
	}, nil
}

// Log queues one record. It never blocks. The only errors are queue
// overflow, a transport configuration error, and shipper.ErrClosed.
func (l *Logger) Log(severity int, label, payload string) error {
	return l.worker.Enqueue(severity, label, payload)
}

// Close flushes for up to timeout (zero waits indefinitely) and stops
// the worker.
func (l *Logger) Close(timeout time.Duration) error {
	err := l.worker.Close(timeout)
	stats := l.worker.Stats()
	l.logger.Info("log shipping stopped",
		"delivered", stats.Delivered,
		"spilled", stats.Spilled,
		"dropped", stats.SpillDropped+stats.Evicted+stats.Overflows,
		"spill_truncations", stats.Truncations,
	)
	return err
}

// CloseWithConfiguredTimeout closes using delivery.flush_timeout from
// the configuration New was given.
func (l *Logger) CloseWithConfiguredTimeout() error {
	return l.Close(l.flushTimeout)
}

// Stats returns the worker's counters.
func (l *Logger) Stats() shipper.Stats { return l.worker.Stats() }

// DeviceID returns the persisted device id, or "" when none is
// configured.
func (l *Logger) DeviceID() string { return l.deviceID }

// Metrics returns the pipeline's instrumentation.
func (l *Logger) Metrics() *metrics.Metrics { return l.metrics }
