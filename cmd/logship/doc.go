// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// logship ships log lines to a remote collector.
//
// Without a command it reads stdin and ships every line:
//
//	journalctl -f | logship --address collector.example:5140 --label journal
//
// With a command it runs the child, copies its stdout and stderr
// through unchanged, and ships stdout lines at the configured severity
// (Info by default) and stderr lines at Error:
//
//	logship --config /etc/logship.yaml -- ./nightly-backup.sh --full
//
// SIGINT, SIGTERM, SIGHUP and SIGQUIT are forwarded to the child, and
// logship exits with the child's exit code once the child has exited
// and the queue has been flushed (bounded by --flush-timeout).
//
// Records the collector cannot take are spilled to disk and replayed,
// before anything new, the next time logship runs with the same spill
// path.
//
// Configuration comes from --config or LOGSHIP_CONFIG (YAML, or JSON
// with comments for .json/.jsonc files); flags override individual
// values. With neither, built-in defaults apply and --address (or
// --endpoint for http mode) is required.
package main
