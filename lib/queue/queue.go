// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/logship/lib/clock"
	"github.com/bureau-foundation/logship/lib/record"
)

// DefaultCapacity is the number of records the queue holds.
const DefaultCapacity = 32768

// ErrOverflow is returned by Enqueue when the queue stayed full even
// after evicting its oldest record.
var ErrOverflow = errors.New("queue: overflow, record dropped")

// Options configures a Queue.
type Options struct {
	// Capacity is the maximum number of queued records. Zero means
	// DefaultCapacity.
	Capacity int

	// Clock times Dequeue waits. Nil means clock.Real().
	Clock clock.Clock

	// OnEvict, if set, is called with each record evicted to make
	// room. It runs on the producer's goroutine.
	OnEvict func(record.Record)
}

// Queue is a bounded many-producer, single-consumer FIFO of records.
type Queue struct {
	items     chan record.Record
	clock     clock.Clock
	onEvict   func(record.Record)
	accepted  atomic.Uint64
	evicted   atomic.Uint64
	overflows atomic.Uint64
}

// New creates a Queue.
func New(options Options) *Queue {
	capacity := options.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Queue{
		items:   make(chan record.Record, capacity),
		clock:   clk,
		onEvict: options.OnEvict,
	}
}

// Enqueue adds rec, split into chunks when its payload is over the
// limit. It never blocks. The first chunk that cannot be inserted
// stops the call with ErrOverflow; earlier chunks stay queued.
func (q *Queue) Enqueue(rec record.Record) error {
	for _, chunk := range record.Split(rec) {
		if err := q.offer(chunk); err != nil {
			return err
		}
	}
	return nil
}

// offer counts the record as accepted before inserting it, so that
// Accepted never lags behind what a consumer can observe in the
// channel.
func (q *Queue) offer(rec record.Record) error {
	q.accepted.Add(1)
	select {
	case q.items <- rec:
		return nil
	default:
	}

	select {
	case oldest := <-q.items:
		q.evicted.Add(1)
		if q.onEvict != nil {
			q.onEvict(oldest)
		}
	default:
	}

	select {
	case q.items <- rec:
		return nil
	default:
		q.accepted.Add(^uint64(0))
		q.overflows.Add(1)
		return ErrOverflow
	}
}

// Dequeue removes the oldest record, waiting up to timeout for one to
// arrive. It returns false when the timeout expires and ctx.Err()
// when ctx is cancelled first.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (record.Record, bool, error) {
	select {
	case rec := <-q.items:
		return rec, true, nil
	default:
	}

	select {
	case rec := <-q.items:
		return rec, true, nil
	case <-q.clock.After(timeout):
		return record.Record{}, false, nil
	case <-ctx.Done():
		return record.Record{}, false, ctx.Err()
	}
}

// Drain removes and returns everything currently queued without
// waiting.
func (q *Queue) Drain() []record.Record {
	var drained []record.Record
	for {
		select {
		case rec := <-q.items:
			drained = append(drained, rec)
		default:
			return drained
		}
	}
}

// Len returns the number of queued records.
func (q *Queue) Len() int { return len(q.items) }

// Capacity returns the queue's fixed capacity.
func (q *Queue) Capacity() int { return cap(q.items) }

// Accepted returns how many records (after chunking) have been
// inserted. Accepted minus Evicted minus everything the consumer has
// taken is the number still queued.
func (q *Queue) Accepted() uint64 { return q.accepted.Load() }

// Evicted returns how many records have been evicted to make room.
func (q *Queue) Evicted() uint64 { return q.evicted.Load() }

// Overflows returns how many Enqueue calls failed with ErrOverflow.
func (q *Queue) Overflows() uint64 { return q.overflows.Load() }
