// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries formatted records to the collector.
//
// [Transport] is the contract the delivery worker drives: Connect
// (idempotent), Write one formatted line (any failure is an error, there
// is no partial success), and Close (idempotent). The worker is the
// only goroutine that ever touches a Transport.
//
// [New] builds one of three implementations from a [Config]:
//
//   - ModeStream writes each line, newline-terminated, to a TCP
//     connection, optionally wrapped in TLS.
//   - ModeRelay does the same against a relay address but prefixes
//     every line with the routing token and a space.
//   - ModeHTTP POSTs each line to Endpoint/<token>, optionally gzip
//     compressed.
//
// Misconfiguration is reported as a [*ConfigError]; the worker treats
// that as fatal rather than as a connection failure to retry.
//
// Connections are opened through a [Dialer] so tests can substitute
// in-memory pipes for TCP.
package transport
