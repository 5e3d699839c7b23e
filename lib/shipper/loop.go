// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/logship/lib/metrics"
	"github.com/bureau-foundation/logship/lib/record"
	"github.com/bureau-foundation/logship/transport"
)

// origin says where a held record came from, for accounting.
type origin int

const (
	fromQueue origin = iota
	fromReplay
)

// run is the worker goroutine.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.closeTransport()

	if err := w.dial(); err != nil {
		var configErr *transport.ConfigError
		if errors.As(err, &configErr) {
			w.logger.Error("transport misconfigured, spilling queue and stopping", "error", err)
			w.configErr.Store(&err)
			w.spillQueue()
			return
		}
		w.logger.Warn("building transport failed, will retry", "error", err)
	}

	if !w.reconnect(ctx) {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("collector unreachable at startup, continuing")
	}

	replay := w.loadReplayBacklog()
	for {
		var (
			rec    record.Record
			held   bool
			source origin
		)
		if len(replay) > 0 {
			rec, held, source = replay[0], true, fromReplay
			replay = replay[1:]
		} else {
			var err error
			rec, held, err = w.queue.Dequeue(ctx, w.config.PollTimeout)
			if err != nil {
				return
			}
			source = fromQueue
			w.metrics.SetQueueDepth(w.queue.Len())
		}

		finished := w.deliver(ctx, rec, held, source)
		if held {
			w.finish(source)
		}
		if !finished {
			w.spillBacklog(replay)
			return
		}
	}
}

// spillBacklog writes the unreplayed part of the startup backlog back
// to the store, in order, so the next session picks it up.
func (w *Worker) spillBacklog(backlog []record.Record) {
	for _, rec := range backlog {
		w.spill(rec)
		w.finish(fromReplay)
	}
	if len(backlog) > 0 {
		w.logger.Info("returned unreplayed backlog to the spill store", "count", len(backlog))
	}
}

// finish accounts for a record the worker is done with.
func (w *Worker) finish(source origin) {
	if source == fromReplay {
		w.replayRemaining.Add(-1)
		return
	}
	w.liveHandled.Add(1)
}

// deliver runs recovery and the send attempt for one loop iteration.
// held is false when the queue poll timed out; recovery still runs. A
// held record always leaves deliver either written or spilled.
// Returns false when the worker is shutting down.
func (w *Worker) deliver(ctx context.Context, rec record.Record, held bool, source origin) bool {
	for {
		if w.State() == Broken {
			w.recover(ctx)
		}
		if ctx.Err() != nil {
			if held {
				w.spill(rec)
			}
			return false
		}
		if !held {
			return true
		}

		err := w.write(ctx, rec)
		if err == nil {
			w.delivered.Add(1)
			w.metrics.RecordDelivered()
			if source == fromReplay {
				w.replayed.Add(1)
				w.metrics.RecordReplayed(metrics.SourceStartup)
			}
			return true
		}
		if ctx.Err() != nil {
			w.spill(rec)
			return false
		}

		w.failures++
		w.writeFails.Add(1)
		w.metrics.DeliveryFailure()

		if w.failures >= w.config.FailureThreshold {
			if w.State() != Broken {
				w.logger.Warn("collector unreachable, spilling to disk",
					"error", err,
					"failures", w.failures,
				)
				w.setState(Broken)
			}
			w.spill(rec)
			return true
		}

		w.logger.Log(ctx, writeFailureLevel(err), "write failed, retrying",
			"error", err,
			"failures", w.failures,
			"retry_delay", w.config.RetryDelay,
		)
		if !w.sleep(ctx, w.config.RetryDelay) {
			w.spill(rec)
			return false
		}
		w.reconnect(ctx)
	}
}

// recover attempts to leave Broken: reconnect, then write every
// record in the spill store in order. Only a complete flush empties
// the store, resets the failure counter and marks the worker
// Connected.
func (w *Worker) recover(ctx context.Context) bool {
	if !w.reconnect(ctx) {
		return false
	}

	stored, err := w.store.DrainAll(false)
	if err != nil {
		w.logger.Error("reading spill store for recovery failed", "error", err)
		return false
	}

	for index, rec := range stored {
		if err := w.write(ctx, rec); err != nil {
			w.logger.Log(ctx, writeFailureLevel(err), "recovery flush failed, keeping spill store",
				"error", err,
				"flushed", index,
				"remaining", len(stored)-index,
			)
			return false
		}
		w.delivered.Add(1)
		w.replayed.Add(1)
		w.metrics.RecordDelivered()
		w.metrics.RecordReplayed(metrics.SourceRecovery)
	}

	if err := w.store.Reset(); err != nil {
		// The records were delivered; leaving them on disk only
		// risks duplicates on the next recovery.
		w.logger.Error("clearing spill store after recovery failed", "error", err)
	}
	w.failures = 0
	w.setState(Connected)
	w.logger.Info("collector connection recovered", "flushed", len(stored))
	return true
}

// writeFailureLevel logs a collector that simply hung up at Debug; the
// reconnect that follows is routine.
func writeFailureLevel(err error) slog.Level {
	if transport.IsExpectedCloseError(err) {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// write formats rec for this attempt and sends it.
func (w *Worker) write(ctx context.Context, rec record.Record) error {
	line := w.formatter.Format(rec)
	if w.transport == nil {
		return transport.ErrNotConnected
	}
	return w.transport.Write(ctx, line)
}

// reconnect closes any existing connection and tries Connect up to
// ConnectAttempts times, ReconnectWait apart. The Broken state is
// preserved across the attempt; recover clears it.
func (w *Worker) reconnect(ctx context.Context) bool {
	broken := w.State() == Broken
	if !broken {
		w.setState(Connecting)
	}
	w.closeTransport()

	for attempt := 1; attempt <= w.config.ConnectAttempts; attempt++ {
		err := w.connectOnce(ctx)
		if err == nil {
			if !broken {
				w.setState(Connected)
			}
			return true
		}
		w.logger.Debug("connect attempt failed",
			"attempt", attempt,
			"max_attempts", w.config.ConnectAttempts,
			"error", err,
		)
		if attempt < w.config.ConnectAttempts && !w.sleep(ctx, w.config.ReconnectWait) {
			break
		}
	}

	if !broken {
		w.setState(Disconnected)
	}
	return false
}

func (w *Worker) connectOnce(ctx context.Context) error {
	if w.transport == nil {
		if err := w.dial(); err != nil {
			return err
		}
	}
	return w.transport.Connect(ctx)
}

func (w *Worker) dial() error {
	t, err := w.config.Dial()
	if err != nil {
		return err
	}
	w.transport = t
	return nil
}

func (w *Worker) closeTransport() {
	if w.transport != nil {
		w.transport.Close()
	}
}

// loadReplayBacklog moves everything a previous session left in the
// spill store into memory and deletes the file.
func (w *Worker) loadReplayBacklog() []record.Record {
	backlog, err := w.store.DrainAll(true)
	if err != nil {
		w.logger.Error("loading spill backlog failed, leaving it on disk", "error", err)
		return nil
	}
	if len(backlog) > 0 {
		w.logger.Info("replaying spilled records from previous session", "count", len(backlog))
	}
	w.replayRemaining.Store(int64(len(backlog)))
	w.backlogLoaded.Store(true)
	return backlog
}

// spill appends rec to the spill store. A store failure drops the
// record.
func (w *Worker) spill(rec record.Record) {
	if err := w.store.Append(rec); err != nil {
		w.spillDropped.Add(1)
		w.metrics.SpillDropped()
		w.logger.Error("spilling record failed, record dropped",
			"error", err,
			"severity", rec.Severity,
			"label", rec.Label,
			"payload_length", rec.Len(),
		)
		return
	}
	w.spilled.Add(1)
	w.metrics.RecordSpilled()
}

// spillQueue moves everything currently queued into the spill store.
func (w *Worker) spillQueue() {
	drained := w.queue.Drain()
	for _, rec := range drained {
		w.spill(rec)
		w.liveHandled.Add(1)
	}
	if len(drained) > 0 {
		w.logger.Info("spilled queued records", "count", len(drained))
	}
	w.metrics.SetQueueDepth(w.queue.Len())
}

// sleep waits for d or cancellation. Returns false if cancelled.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-w.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
