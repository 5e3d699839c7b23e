// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shipper implements the delivery worker: the single goroutine
// that owns the collector transport and moves records from the
// ingestion queue to the network, falling back to the spill store when
// the network is unavailable.
//
// The worker is a small state machine:
//
//	Disconnected -> Connecting -> Connected
//	                     ^            |
//	                     |   3 failed writes of one record
//	                     |            v
//	                     +-------- Broken
//
// At startup it connects (three attempts, 100ms apart), then loads
// everything left in the spill store by a previous session into an
// in-memory replay backlog and deletes the file. The replay backlog is
// always delivered before anything from the queue.
//
// A failed write is retried on the same record after a short delay
// and a reconnect. The third consecutive failure marks the worker
// Broken and appends the record to the spill store. While Broken,
// every loop iteration first attempts recovery: reconnect, then write
// every record in the spill store in order. Only a complete flush
// clears Broken and empties the store; a partial flush leaves the
// store as it was, so records may be delivered more than once but are
// never lost to a flaky link.
//
// Producers see only three errors from [Worker.Enqueue]: overflow, a
// configuration error that prevented the worker from starting, and
// [ErrClosed]. Network and storage failures are handled and logged
// inside the worker.
package shipper
