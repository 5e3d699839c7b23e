// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/logship/lib/record"
)

func openStore(t *testing.T, options Options) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "spill", "logship.spill"), options)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestAppendDrainRoundTrip(t *testing.T) {
	store := openStore(t, Options{})
	input := []record.Record{
		record.New(record.SeverityInfo, "net", "connected to collector"),
		record.New(record.SeverityUnset, "", "no severity, no label"),
		record.New(record.SeverityError, "db", "payload; with; semicolons"),
		record.New(0, "zero", ""),
	}
	for _, rec := range input {
		if err := store.Append(rec); err != nil {
			t.Fatalf("Append(%v): %v", rec, err)
		}
	}

	drained, err := store.DrainAll(false)
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if len(drained) != len(input) {
		t.Fatalf("drained %d records, want %d", len(drained), len(input))
	}
	for i := range input {
		if drained[i] != input[i] {
			t.Errorf("record %d: got %+v, want %+v", i, drained[i], input[i])
		}
	}
}

func TestAppendFlattensPayloadLineBreaks(t *testing.T) {
	store := openStore(t, Options{})
	if err := store.Append(record.New(record.SeverityWarn, "trace", "line one\nline two\r\nline three")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	drained, err := store.DrainAll(false)
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if len(drained) != 1 {
		t.Fatalf("drained %d records, want 1 (line breaks leaked into the file)", len(drained))
	}
	want := "line one" + record.LineSeparator + "line two" + record.LineSeparator + "line three"
	if drained[0].Payload != want {
		t.Errorf("payload = %q, want %q", drained[0].Payload, want)
	}
}

func TestAppendSanitizesLabelSeparator(t *testing.T) {
	store := openStore(t, Options{})
	if err := store.Append(record.New(record.SeverityInfo, "a;b", "msg")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	drained, err := store.DrainAll(false)
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if drained[0].Label != "a,b" || drained[0].Payload != "msg" {
		t.Errorf("got %+v", drained[0])
	}
}

func TestDrainRecoversMalformedLines(t *testing.T) {
	store := openStore(t, Options{})
	contents := "4;app;first\nabc;tag;msg\n5;app;second\n6;;third\n"
	if err := os.WriteFile(store.Path(), []byte(contents), 0o600); err != nil {
		t.Fatalf("seeding spill file: %v", err)
	}

	drained, err := store.DrainAll(false)
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if len(drained) != 4 {
		t.Fatalf("drained %d records, want 4", len(drained))
	}
	malformed := drained[1]
	if malformed.Payload != "abc;tag;msg" {
		t.Errorf("malformed payload = %q, want raw line", malformed.Payload)
	}
	if malformed.Severity != record.SeverityError || malformed.Label != RecoveredLabel {
		t.Errorf("malformed record = %+v, want error severity with label %q", malformed, RecoveredLabel)
	}
	if drained[0].Payload != "first" || drained[2].Payload != "second" || drained[3].Payload != "third" {
		t.Errorf("valid records out of order or altered: %+v", drained)
	}
}

func TestDrainRecoversUnterminatedLastLine(t *testing.T) {
	store := openStore(t, Options{})
	if err := os.WriteFile(store.Path(), []byte("4;a;one\n4;a;tw"), 0o600); err != nil {
		t.Fatalf("seeding spill file: %v", err)
	}
	drained, err := store.DrainAll(false)
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if len(drained) != 2 || drained[1].Payload != "tw" {
		t.Fatalf("drained = %+v, want the partial line kept", drained)
	}
}

func TestDrainMissingFileIsEmpty(t *testing.T) {
	store := openStore(t, Options{})
	drained, err := store.DrainAll(true)
	if err != nil {
		t.Fatalf("DrainAll on missing file: %v", err)
	}
	if len(drained) != 0 {
		t.Fatalf("drained %d records from a missing file", len(drained))
	}
}

func TestDrainRemove(t *testing.T) {
	store := openStore(t, Options{})
	if err := store.Append(record.New(record.SeverityInfo, "", "x")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := store.DrainAll(false); err != nil {
		t.Fatalf("DrainAll(false): %v", err)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatalf("peek removed the file: %v", err)
	}

	drained, err := store.DrainAll(true)
	if err != nil {
		t.Fatalf("DrainAll(true): %v", err)
	}
	if len(drained) != 1 {
		t.Fatalf("drained %d records, want 1", len(drained))
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Fatalf("file still present after DrainAll(true): %v", err)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	store := openStore(t, Options{})
	for i := 0; i < 2; i++ {
		if err := store.Reset(); err != nil {
			t.Fatalf("Reset #%d: %v", i, err)
		}
	}
	if err := store.Append(record.New(record.SeverityInfo, "", "x")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	size, err := store.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 0 {
		t.Fatalf("Size after Reset = %d, want 0", size)
	}
}

func TestAppendTruncatesWholeFileAtCap(t *testing.T) {
	var dropped []int64
	store := openStore(t, Options{
		MaxBytes:   100,
		OnTruncate: func(bytes int64) { dropped = append(dropped, bytes) },
	})

	// Each encoded line is 4;t; + 15 payload bytes + newline = 20 bytes.
	payload := strings.Repeat("p", 15)
	for i := 0; i < 5; i++ {
		if err := store.Append(record.New(record.SeverityInfo, "t", payload)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	size, _ := store.Size()
	if size != 100 {
		t.Fatalf("size after filling = %d, want 100", size)
	}
	if store.Truncations() != 0 {
		t.Fatalf("truncated before the cap was exceeded")
	}

	if err := store.Append(record.New(record.SeverityError, "t", "after-truncate!")); err != nil {
		t.Fatalf("Append over cap: %v", err)
	}

	drained, err := store.DrainAll(false)
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if len(drained) != 1 || drained[0].Payload != "after-truncate!" {
		t.Fatalf("store after truncation = %+v, want only the new record", drained)
	}
	if store.Truncations() != 1 {
		t.Errorf("Truncations() = %d, want 1", store.Truncations())
	}
	if len(dropped) != 1 || dropped[0] != 100 {
		t.Errorf("OnTruncate calls = %v, want [100]", dropped)
	}
}

func TestAppendRejectsRecordLargerThanCap(t *testing.T) {
	store := openStore(t, Options{MaxBytes: 16})
	err := store.Append(record.New(record.SeverityInfo, "", strings.Repeat("x", 32)))
	if err == nil {
		t.Fatal("expected ErrRecordTooLarge")
	}
	if store.Truncations() != 0 {
		t.Errorf("oversized record triggered a truncation")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		line string
		want record.Record
		ok   bool
	}{
		{"4;tag;msg", record.New(4, "tag", "msg"), true},
		{"-1;;msg", record.New(record.SeverityUnset, "", "msg"), true},
		{"6;tag;a;b;c", record.New(6, "tag", "a;b;c"), true},
		{"abc;tag;msg", record.New(record.SeverityError, RecoveredLabel, "abc;tag;msg"), false},
		{"", record.New(record.SeverityError, RecoveredLabel, ""), false},
		{"4;no second separator", record.New(record.SeverityError, RecoveredLabel, "4;no second separator"), false},
	}
	for _, test := range tests {
		got, ok := Decode(test.line)
		if got != test.want || ok != test.ok {
			t.Errorf("Decode(%q) = %+v, %v; want %+v, %v", test.line, got, ok, test.want, test.ok)
		}
	}
}
