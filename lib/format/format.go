// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bureau-foundation/logship/lib/clock"
	"github.com/bureau-foundation/logship/lib/record"
)

// Formatter turns a record into one wire line, without a trailing
// newline.
type Formatter interface {
	Format(rec record.Record) string
}

// Options selects what Message includes.
type Options struct {
	// JSON wraps the line in an {"event": {...}} envelope.
	JSON bool

	// Raw sends the flattened payload alone, ignoring every other
	// option.
	Raw bool

	// HostName, TraceID and DeviceID are included when non-empty.
	HostName string
	TraceID  string
	DeviceID string

	// Severity includes the severity name and, when present, the
	// record label.
	Severity bool

	// Clock supplies the millisecond timestamp. Nil means clock.Real().
	Clock clock.Clock
}

// Message is the standard Formatter.
type Message struct {
	options Options
}

var _ Formatter = (*Message)(nil)

// New returns a Message formatter.
func New(options Options) *Message {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	return &Message{options: options}
}

// Format renders rec. Line breaks in the payload are replaced with
// record.LineSeparator.
func (m *Message) Format(rec record.Record) string {
	payload := record.FlattenLines(rec.Payload)
	if m.options.Raw {
		return payload
	}
	timestamp := m.options.Clock.Now().UnixMilli()
	if m.options.JSON {
		return m.formatJSON(rec, payload, timestamp)
	}
	return m.formatPlain(rec, payload, timestamp)
}

func (m *Message) formatPlain(rec record.Record, payload string, timestamp int64) string {
	var builder strings.Builder
	field := func(key, value string) {
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(value)
		builder.WriteByte(' ')
	}
	if m.options.HostName != "" {
		field("Host", m.options.HostName)
	}
	if m.options.TraceID != "" {
		field("TraceID", m.options.TraceID)
	}
	if m.options.DeviceID != "" {
		field("DeviceId", m.options.DeviceID)
	}
	if m.options.Severity {
		field("Severity", record.SeverityName(rec.Severity))
		if rec.Label != "" {
			field("Label", record.FlattenLines(rec.Label))
		}
	}
	field("Timestamp", strconv.FormatInt(timestamp, 10))
	builder.WriteString(payload)
	return builder.String()
}

func (m *Message) formatJSON(rec record.Record, payload string, timestamp int64) string {
	var buffer bytes.Buffer
	buffer.WriteString(`{"event":{`)
	field := func(key string, value []byte) {
		buffer.WriteString(strconv.Quote(key))
		buffer.WriteByte(':')
		buffer.Write(value)
		buffer.WriteByte(',')
	}
	if m.options.HostName != "" {
		field("Host", jsonString(m.options.HostName))
	}
	if m.options.TraceID != "" {
		field("TraceID", jsonString(m.options.TraceID))
	}
	if m.options.DeviceID != "" {
		field("DeviceId", jsonString(m.options.DeviceID))
	}
	if m.options.Severity {
		field("Severity", jsonString(record.SeverityName(rec.Severity)))
		if rec.Label != "" {
			field("Label", jsonString(rec.Label))
		}
	}
	field("Timestamp", []byte(strconv.FormatInt(timestamp, 10)))

	// A JSON document is checked before line flattening, which would
	// turn its insignificant newlines into invalid characters. Compact
	// removes them instead.
	buffer.WriteString(`"Message":`)
	var compact bytes.Buffer
	if isJSONDocument(rec.Payload) && json.Compact(&compact, []byte(rec.Payload)) == nil {
		buffer.Write(compact.Bytes())
	} else {
		buffer.Write(jsonString(payload))
	}
	buffer.WriteString("}}")
	return buffer.String()
}

// isJSONDocument reports whether s is a JSON object or array. Bare
// scalars are treated as text so "42" stays a string message.
func isJSONDocument(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid([]byte(trimmed))
}

func jsonString(s string) []byte {
	encoded, _ := json.Marshal(s)
	return encoded
}
