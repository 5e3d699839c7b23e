// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/logship/lib/queue"
)

// logFunc ships one record.
type logFunc func(severity int, label, payload string) error

// lineStats summarizes one shipLines run.
type lineStats struct {
	shipped  int
	dropped  int
	firstErr error
}

// shipLines reads input line by line, copies each line verbatim to
// echo (when non-nil), and ships it with the given severity and
// label. Lines of any length are accepted; long ones are split by the
// queue. Overflow drops the line and is counted; any other shipping
// error is remembered and reading continues so echo keeps flowing.
func shipLines(input io.Reader, echo io.Writer, ship logFunc, severity int, label string, logger *slog.Logger) (lineStats, error) {
	var stats lineStats
	reader := bufio.NewReaderSize(input, 64*1024)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			if echo != nil {
				if _, err := io.WriteString(echo, line); err != nil {
					logger.Debug("echoing line failed", "error", err)
				}
			}
			payload := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			switch err := ship(severity, label, payload); {
			case err == nil:
				stats.shipped++
			case errors.Is(err, queue.ErrOverflow):
				stats.dropped++
			default:
				stats.dropped++
				if stats.firstErr == nil {
					stats.firstErr = err
					logger.Error("shipping line failed", "error", err)
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return stats, nil
			}
			return stats, readErr
		}
	}
}
