// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package record defines the unit logship ships: a [Record] carrying a
// severity, an optional label, and a payload.
//
// Payloads are bounded by [MaxPayloadLength] code points. Producers may
// hand in longer text; [Split] cuts it into ordered chunks that share
// the original severity and label. [FlattenLines] replaces line breaks
// with [LineSeparator] so that one record always occupies one line in
// the spill file and on the wire.
package record
