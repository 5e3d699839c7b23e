// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds logship's CBOR configuration for on-disk state
// files such as the persisted device identity. The wire formats sent
// to the collector are text and JSON and do not go through this
// package.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2) so the
// same state always produces the same bytes. Decoding ignores unknown
// fields so older binaries can read files written by newer ones.
package codec
