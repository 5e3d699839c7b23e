// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity resolves the metadata the formatter attaches to
// every record: a host name, a trace id fingerprinting the machine, a
// device id persisted across restarts, and the routing token check.
//
// The device id lives in a small CBOR state file written atomically
// (temporary file, fsync, rename, parent directory fsync), so a crash
// mid-write leaves either the old id or the new one, never a torn file.
package identity
