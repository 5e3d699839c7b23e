// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source used by the delivery worker,
// the ingestion queue, and the record formatter.
//
// Production code holds a [Clock] obtained from [Real]. Tests use
// [Fake], whose time only moves when the test calls Advance, and
// WaitForTimers to block until the code under test has registered the
// wait it is about to perform:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go worker.run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
package clock
