// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Severity levels. The scale matches the one used by mobile clients
// of the collector; callers may use any non-negative integer.
const (
	SeverityUnset   = -1
	SeverityVerbose = 2
	SeverityDebug   = 3
	SeverityInfo    = 4
	SeverityWarn    = 5
	SeverityError   = 6
	SeverityAssert  = 7
)

// MaxPayloadLength is the largest payload, in code points, a single
// Record may carry.
const MaxPayloadLength = 65536

// LineSeparator stands in for line breaks inside a payload (U+2028).
const LineSeparator = "\u2028"

// Record is one log entry. An empty Label means no label.
type Record struct {
	Severity int
	Label    string
	Payload  string
}

// New returns a Record with the given fields.
func New(severity int, label, payload string) Record {
	return Record{Severity: severity, Label: label, Payload: payload}
}

// Len returns the payload length in code points.
func (r Record) Len() int {
	return utf8.RuneCountInString(r.Payload)
}

func (r Record) String() string {
	return fmt.Sprintf("%s/%s: %s", SeverityName(r.Severity), r.Label, r.Payload)
}

// SeverityName returns a short name for known severities and the
// decimal value otherwise.
func SeverityName(severity int) string {
	switch severity {
	case SeverityUnset:
		return "UNSET"
	case SeverityVerbose:
		return "VERBOSE"
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	case SeverityAssert:
		return "ASSERT"
	default:
		return fmt.Sprintf("%d", severity)
	}
}

// Split returns rec unchanged in a one-element slice when its payload
// fits in MaxPayloadLength, and otherwise the payload cut into
// ceil(len/MaxPayloadLength) chunks in order. Every chunk keeps the
// severity and label of rec.
func Split(rec Record) []Record {
	return SplitN(rec, MaxPayloadLength)
}

// SplitN is Split with an explicit chunk length. A limit <= 0 disables
// splitting.
func SplitN(rec Record, limit int) []Record {
	if limit <= 0 || len(rec.Payload) <= limit || rec.Len() <= limit {
		return []Record{rec}
	}

	chunks := make([]Record, 0, rec.Len()/limit+1)
	payload := rec.Payload
	for payload != "" {
		cut := len(payload)
		count := 0
		for offset := range payload {
			if count == limit {
				cut = offset
				break
			}
			count++
		}
		chunks = append(chunks, Record{Severity: rec.Severity, Label: rec.Label, Payload: payload[:cut]})
		payload = payload[cut:]
	}
	return chunks
}

var lineBreaks = strings.NewReplacer("\r\n", LineSeparator, "\n", LineSeparator)

// FlattenLines replaces CRLF and LF line breaks with LineSeparator.
// The replacement is not reversed anywhere in logship; the collector
// understands the separator.
func FlattenLines(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	return lineBreaks.Replace(s)
}
