// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logship

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/bureau-foundation/logship/lib/record"
)

// LabelKey is the record attribute the handler lifts into the record
// label instead of rendering it.
const LabelKey = "label"

// handler is a slog.Handler that ships through a Logger. Attributes
// are rendered by an inner slog.TextHandler as key=value pairs after
// the message.
type handler struct {
	logger *Logger
	level  slog.Leveler
	inner  slog.Handler
	buffer *renderBuffer
}

// renderBuffer collects one rendering of the inner handler. Handle
// holds mu for the whole render-and-read.
type renderBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *renderBuffer) Write(p []byte) (int, error) { return b.buffer.Write(p) }

// NewHandler returns a slog.Handler that ships every enabled record
// through l. slog levels map to severities: below Info is Debug, below
// Warn is Info, below Error is Warn, and the rest are Error. A
// top-level "label" attribute becomes the record label. Options may
// be nil; Level and ReplaceAttr are honored.
func NewHandler(l *Logger, options *slog.HandlerOptions) slog.Handler {
	if options == nil {
		options = &slog.HandlerOptions{}
	}
	level := options.Level
	if level == nil {
		level = slog.LevelInfo
	}
	userReplace := options.ReplaceAttr
	buffer := &renderBuffer{}
	inner := slog.NewTextHandler(buffer, &slog.HandlerOptions{
		Level: slog.LevelDebug - 100,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 {
				switch attr.Key {
				case slog.TimeKey, slog.LevelKey, slog.MessageKey:
					return slog.Attr{}
				}
			}
			if userReplace != nil {
				return userReplace(groups, attr)
			}
			return attr
		},
	})
	return &handler{logger: l, level: level, inner: inner, buffer: buffer}
}

// SeverityForLevel maps a slog level onto the record severity scale.
func SeverityForLevel(level slog.Level) int {
	switch {
	case level < slog.LevelInfo:
		return record.SeverityDebug
	case level < slog.LevelWarn:
		return record.SeverityInfo
	case level < slog.LevelError:
		return record.SeverityWarn
	default:
		return record.SeverityError
	}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	var label string
	rest := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == LabelKey && label == "" {
			label = attr.Value.String()
			return true
		}
		rest.AddAttrs(attr)
		return true
	})

	h.buffer.mu.Lock()
	h.buffer.buffer.Reset()
	err := h.inner.Handle(ctx, rest)
	attrs := strings.TrimSpace(h.buffer.buffer.String())
	h.buffer.mu.Unlock()
	if err != nil {
		return err
	}

	payload := r.Message
	if attrs != "" {
		payload += " " + attrs
	}
	return h.logger.Log(SeverityForLevel(r.Level), label, payload)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	return &clone
}
