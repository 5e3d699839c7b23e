// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/logship/lib/clock"
	"github.com/bureau-foundation/logship/lib/format"
	"github.com/bureau-foundation/logship/lib/metrics"
	"github.com/bureau-foundation/logship/lib/queue"
	"github.com/bureau-foundation/logship/lib/record"
	"github.com/bureau-foundation/logship/lib/spill"
	"github.com/bureau-foundation/logship/transport"
)

// Default tunables.
const (
	DefaultConnectAttempts  = 3
	DefaultReconnectWait    = 100 * time.Millisecond
	DefaultFailureThreshold = 3
	DefaultPollTimeout      = time.Second
	DefaultRetryDelay       = 100 * time.Millisecond

	// flushPollInterval is how often Close re-checks the queue while
	// waiting for it to drain.
	flushPollInterval = 10 * time.Millisecond
)

var (
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("shipper: worker closed")

	// ErrFlushTimeout is wrapped by Close when the flush wait expired
	// with records still queued.
	ErrFlushTimeout = errors.New("shipper: flush timed out")
)

// Config wires a Worker to its collaborators.
type Config struct {
	// Queue is the ingestion queue the worker consumes. Required.
	Queue *queue.Queue

	// Store is the durable spill store. Required.
	Store *spill.Store

	// Dial builds the transport. It is called once when the worker
	// starts, and again on reconnect until it succeeds. A
	// *transport.ConfigError from Dial is fatal: the worker spills the
	// queue and exits. Required.
	Dial func() (transport.Transport, error)

	// Formatter renders each delivery attempt. Required.
	Formatter format.Formatter

	// Clock times every wait. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives worker diagnostics. Nil discards them.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// ConnectAttempts is how many times one reconnect tries Connect.
	ConnectAttempts int

	// ReconnectWait separates connect attempts.
	ReconnectWait time.Duration

	// FailureThreshold is the number of failed writes that moves the
	// worker to Broken. The count is cleared only by a successful
	// recovery, not by a successful write.
	FailureThreshold int

	// PollTimeout bounds each wait on the queue.
	PollTimeout time.Duration

	// RetryDelay precedes every retry of the same record. Negative
	// disables the delay.
	RetryDelay time.Duration
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Enqueued     uint64
	Delivered    uint64
	Spilled      uint64
	SpillDropped uint64
	Truncations  uint64
	Replayed     uint64
	Failures     uint64
	Evicted      uint64
	Overflows    uint64
	Queued       int
	State        State
}

// Worker is the delivery worker. Create with New, run with Start,
// stop with Close.
type Worker struct {
	config    Config
	queue     *queue.Queue
	store     *spill.Store
	formatter format.Formatter
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics

	cancel context.CancelFunc
	ctx    context.Context
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	closed    atomic.Bool
	configErr atomic.Pointer[error]

	state atomic.Int32

	// Owned by the worker goroutine.
	transport transport.Transport
	failures  int

	// liveHandled counts queue records the worker has finished with
	// (delivered, spilled, or dropped). With the queue's Accepted and
	// Evicted counters it tells Close whether anything is in flight.
	liveHandled     atomic.Uint64
	replayRemaining atomic.Int64

	// backlogLoaded is set once the startup backlog has been read from
	// the store. Until then the worker is not idle.
	backlogLoaded atomic.Bool

	enqueued     atomic.Uint64
	delivered    atomic.Uint64
	spilled      atomic.Uint64
	spillDropped atomic.Uint64
	replayed     atomic.Uint64
	writeFails   atomic.Uint64
}

// New validates config and returns an unstarted Worker.
func New(config Config) (*Worker, error) {
	if config.Queue == nil {
		return nil, errors.New("shipper: Queue is required")
	}
	if config.Store == nil {
		return nil, errors.New("shipper: Store is required")
	}
	if config.Dial == nil {
		return nil, errors.New("shipper: Dial is required")
	}
	if config.Formatter == nil {
		return nil, errors.New("shipper: Formatter is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.ConnectAttempts <= 0 {
		config.ConnectAttempts = DefaultConnectAttempts
	}
	if config.ReconnectWait <= 0 {
		config.ReconnectWait = DefaultReconnectWait
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	} else if config.RetryDelay == 0 {
		config.RetryDelay = DefaultRetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		config:    config,
		queue:     config.Queue,
		store:     config.Store,
		formatter: config.Formatter,
		clock:     config.Clock,
		logger:    config.Logger,
		metrics:   config.Metrics,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine. Calling it more than once, or
// after Close, does nothing.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run(w.ctx)
	})
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// State returns the current connection state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Err returns the configuration error that stopped the worker, or nil.
func (w *Worker) Err() error {
	if err := w.configErr.Load(); err != nil {
		return *err
	}
	return nil
}

// Enqueue queues one record for delivery without blocking. Payloads
// over record.MaxPayloadLength are split into several records.
func (w *Worker) Enqueue(severity int, label, payload string) error {
	if w.closed.Load() {
		return ErrClosed
	}
	if err := w.Err(); err != nil {
		return err
	}
	if err := w.queue.Enqueue(record.New(severity, label, payload)); err != nil {
		if errors.Is(err, queue.ErrOverflow) {
			w.metrics.EnqueueOverflow()
		}
		return err
	}
	w.enqueued.Add(1)
	w.metrics.RecordEnqueued()
	w.metrics.SetQueueDepth(w.queue.Len())
	return nil
}

// Close waits up to flushTimeout for the queue to drain and the worker
// to go idle (zero waits indefinitely), then stops the worker and
// waits for it to close the transport. Producers may keep enqueueing
// during the wait. After Close, Enqueue returns ErrClosed. A second
// Close returns nil immediately.
func (w *Worker) Close(flushTimeout time.Duration) error {
	var result error
	w.closeOnce.Do(func() {
		result = w.close(flushTimeout)
	})
	return result
}

func (w *Worker) close(flushTimeout time.Duration) error {
	// A worker that was never started has nothing to flush.
	started := true
	w.startOnce.Do(func() {
		started = false
		close(w.done)
	})

	var flushErr error
	if started {
		flushErr = w.flush(flushTimeout)
	}

	w.closed.Store(true)
	w.cancel()
	<-w.done

	// After a configuration failure the worker has already exited;
	// records that raced in behind its drain still belong on disk.
	if w.Err() != nil {
		w.spillQueue()
	}
	return flushErr
}

func (w *Worker) flush(timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = w.clock.After(timeout)
	}
	for !w.idle() {
		select {
		case <-w.done:
			return nil
		case <-deadline:
			return fmt.Errorf("%w after %s with %d records queued", ErrFlushTimeout, timeout, w.queue.Len())
		case <-w.clock.After(flushPollInterval):
		}
	}
	return nil
}

// idle reports whether the startup backlog has been loaded and
// replayed, and every accepted record has been either evicted or
// finished by the worker.
func (w *Worker) idle() bool {
	if !w.backlogLoaded.Load() || w.replayRemaining.Load() > 0 {
		return false
	}
	return w.queue.Accepted() == w.queue.Evicted()+w.liveHandled.Load()
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Enqueued:     w.enqueued.Load(),
		Delivered:    w.delivered.Load(),
		Spilled:      w.spilled.Load(),
		SpillDropped: w.spillDropped.Load(),
		Truncations:  w.store.Truncations(),
		Replayed:     w.replayed.Load(),
		Failures:     w.writeFails.Load(),
		Evicted:      w.queue.Evicted(),
		Overflows:    w.queue.Overflows(),
		Queued:       w.queue.Len(),
		State:        w.State(),
	}
}

func (w *Worker) setState(state State) {
	previous := State(w.state.Swap(int32(state)))
	w.metrics.SetWorkerState(int(state))
	if previous != state {
		w.logger.Debug("worker state changed", "from", previous.String(), "to", state.String())
	}
}
