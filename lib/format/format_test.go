// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bureau-foundation/logship/lib/clock"
	"github.com/bureau-foundation/logship/lib/record"
)

var epoch = time.UnixMilli(1760700000000)

func TestPlainFormat(t *testing.T) {
	formatter := New(Options{
		HostName: "build-07",
		TraceID:  "ABCDEF",
		DeviceID: "dev-1",
		Clock:    clock.Fake(epoch),
	})
	got := formatter.Format(record.New(record.SeverityInfo, "net", "link up"))
	want := "Host=build-07 TraceID=ABCDEF DeviceId=dev-1 Timestamp=1760700000000 link up"
	if got != want {
		t.Errorf("Format = %q\nwant     %q", got, want)
	}
}

func TestPlainFormatMinimal(t *testing.T) {
	formatter := New(Options{Clock: clock.Fake(epoch)})
	got := formatter.Format(record.New(record.SeverityUnset, "", "hello"))
	if got != "Timestamp=1760700000000 hello" {
		t.Errorf("Format = %q", got)
	}
}

func TestPlainFormatSeverityAndLabel(t *testing.T) {
	formatter := New(Options{Severity: true, Clock: clock.Fake(epoch)})
	got := formatter.Format(record.New(record.SeverityWarn, "disk", "almost full"))
	want := "Severity=WARN Label=disk Timestamp=1760700000000 almost full"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatFlattensLineBreaks(t *testing.T) {
	formatter := New(Options{Raw: true})
	got := formatter.Format(record.New(record.SeverityInfo, "", "one\ntwo\r\nthree"))
	want := "one" + record.LineSeparator + "two" + record.LineSeparator + "three"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestRawIgnoresMetadata(t *testing.T) {
	formatter := New(Options{Raw: true, JSON: true, HostName: "h", Severity: true})
	if got := formatter.Format(record.New(record.SeverityError, "x", "bare")); got != "bare" {
		t.Errorf("Format = %q, want %q", got, "bare")
	}
}

func TestJSONFormatTextMessage(t *testing.T) {
	formatter := New(Options{JSON: true, HostName: "build-07", DeviceID: "dev-1", Clock: clock.Fake(epoch)})
	line := formatter.Format(record.New(record.SeverityInfo, "", `said "hi"`))

	var envelope struct {
		Event struct {
			Host      string
			DeviceId  string
			Timestamp int64
			Message   string
		} `json:"event"`
	}
	if err := json.Unmarshal([]byte(line), &envelope); err != nil {
		t.Fatalf("output %q is not JSON: %v", line, err)
	}
	if envelope.Event.Host != "build-07" || envelope.Event.DeviceId != "dev-1" {
		t.Errorf("metadata = %+v", envelope.Event)
	}
	if envelope.Event.Timestamp != 1760700000000 {
		t.Errorf("Timestamp = %d", envelope.Event.Timestamp)
	}
	if envelope.Event.Message != `said "hi"` {
		t.Errorf("Message = %q", envelope.Event.Message)
	}
}

func TestJSONFormatEmbedsJSONPayload(t *testing.T) {
	formatter := New(Options{JSON: true, Clock: clock.Fake(epoch)})
	line := formatter.Format(record.New(record.SeverityInfo, "", "{\n  \"disk\": \"full\",\n  \"pct\": 99\n}"))

	want := `{"event":{"Timestamp":1760700000000,"Message":{"disk":"full","pct":99}}}`
	if line != want {
		t.Errorf("Format = %q\nwant     %q", line, want)
	}
}

func TestJSONFormatScalarStaysString(t *testing.T) {
	formatter := New(Options{JSON: true, Clock: clock.Fake(epoch)})
	line := formatter.Format(record.New(record.SeverityInfo, "", "42"))
	want := `{"event":{"Timestamp":1760700000000,"Message":"42"}}`
	if line != want {
		t.Errorf("Format = %q, want %q", line, want)
	}
}

func TestFormatUsesCurrentTime(t *testing.T) {
	fake := clock.Fake(epoch)
	formatter := New(Options{Clock: fake})
	rec := record.New(record.SeverityInfo, "", "x")

	first := formatter.Format(rec)
	fake.Advance(1500 * time.Millisecond)
	second := formatter.Format(rec)
	if first == second {
		t.Fatalf("two attempts at different times produced the same line %q", first)
	}
	if second != "Timestamp=1760700001500 x" {
		t.Errorf("second attempt = %q", second)
	}
}
