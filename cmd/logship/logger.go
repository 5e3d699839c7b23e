// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newCommandLogger creates the logger for logship's own diagnostics,
// written to stderr. A terminal gets slog.TextHandler; a pipe or file
// gets slog.JSONHandler so the output is machine-parseable.
func newCommandLogger(level slog.Level) *slog.Logger {
	return slog.New(newDiagnosticHandler(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level))
}

func newDiagnosticHandler(output io.Writer, terminal bool, level slog.Level) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if terminal {
		return slog.NewTextHandler(output, options)
	}
	return slog.NewJSONHandler(output, options)
}
