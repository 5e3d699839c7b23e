// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spill implements the durable spill store: an append-only
// text file holding records the network could not accept.
//
// Each record is one line of the form
//
//	severity;label;payload\n
//
// with line breaks inside the payload replaced by
// [record.LineSeparator]. Lines that do not match that grammar are
// never skipped: [Store.DrainAll] turns each of them into a synthetic
// error record whose payload is the raw line, so no byte range of the
// file is silently lost.
//
// The file is capped (10 MiB by default). An append that would push
// it past the cap first truncates the entire file. That is the
// store's only bulk data-loss path; it is logged, counted, and
// reported through [Options].OnTruncate.
//
// A single mutex serializes every operation. The delivery worker is
// the only writer in normal operation, but its replay and failure
// paths both come through this type.
package spill
