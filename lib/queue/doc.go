// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue is the ingestion queue between producers and the
// delivery worker: a fixed-capacity FIFO of records that never blocks
// the caller.
//
// When the queue is full, Enqueue evicts the single oldest record and
// retries once. If a concurrent producer refilled the slot in between,
// Enqueue gives up with [ErrOverflow] rather than waiting. Payloads
// over [record.MaxPayloadLength] are split first and each chunk goes
// through the same policy, so under sustained overflow the chunks of
// one payload may not arrive contiguously.
//
// Dequeue is for the single consumer. It waits at most the given
// timeout so the consumer can get back to its own bookkeeping.
package queue
