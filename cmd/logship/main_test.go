// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/logship/lib/config"
	"github.com/bureau-foundation/logship/lib/queue"
	"github.com/bureau-foundation/logship/lib/record"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantCommand []string
		wantLabel   string
		wantErr     bool
	}{
		{
			name: "no arguments ships stdin",
			args: nil,
		},
		{
			name:      "flags only",
			args:      []string{"--address", "collector:5140", "--label", "api"},
			wantLabel: "api",
		},
		{
			name:        "command without separator",
			args:        []string{"/bin/sh", "-c", "echo hello"},
			wantCommand: []string{"/bin/sh", "-c", "echo hello"},
		},
		{
			name:        "command with separator",
			args:        []string{"--label", "job", "--", "/bin/sh", "-c", "echo hello"},
			wantCommand: []string{"/bin/sh", "-c", "echo hello"},
			wantLabel:   "job",
		},
		{
			name:        "child flags are not parsed",
			args:        []string{"ls", "--label", "not-ours"},
			wantCommand: []string{"ls", "--label", "not-ours"},
		},
		{
			name:        "command starting with dash",
			args:        []string{"--", "--version"},
			wantCommand: []string{"--version"},
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: true,
		},
		{
			name:    "negative flush timeout",
			args:    []string{"--flush-timeout=-1s"},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts, err := parseArgs(test.args)
			if test.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(opts.command, " ") != strings.Join(test.wantCommand, " ") {
				t.Errorf("command = %q, want %q", opts.command, test.wantCommand)
			}
			if opts.label != test.wantLabel {
				t.Errorf("label = %q, want %q", opts.label, test.wantLabel)
			}
		})
	}
}

func TestParseArgsHelpAndVersion(t *testing.T) {
	opts, err := parseArgs([]string{"--help"})
	if err != nil || !opts.showHelp {
		t.Fatalf("--help: opts=%+v err=%v", opts, err)
	}
	opts, err = parseArgs([]string{"--version"})
	if err != nil || !opts.showVersion {
		t.Fatalf("--version: opts=%+v err=%v", opts, err)
	}

	var help bytes.Buffer
	printHelp(&help, opts.flagSet)
	for _, flag := range []string{"--config", "--address", "--spill-path", "--flush-timeout"} {
		if !strings.Contains(help.String(), flag) {
			t.Errorf("help output missing %s", flag)
		}
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	directory := t.TempDir()
	configPath := filepath.Join(directory, "logship.yaml")
	content := `
transport:
  address: file.example:1
  tls: true
spill:
  path: /from/file.log
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := parseArgs([]string{
		"--config", configPath,
		"--address", "flag.example:2",
		"--spill-path", filepath.Join(directory, "flag.log"),
		"--json",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	cfg, err := loadConfig(opts, func(string) string { return "" })
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Transport.Address != "flag.example:2" {
		t.Errorf("address = %q, want flag value", cfg.Transport.Address)
	}
	if !cfg.Transport.TLS {
		t.Error("tls from file was overridden by an unset flag")
	}
	if cfg.Spill.Path != filepath.Join(directory, "flag.log") {
		t.Errorf("spill path = %q", cfg.Spill.Path)
	}
	if !cfg.Format.JSON {
		t.Error("--json not applied")
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "logship.yaml")
	if err := os.WriteFile(configPath, []byte("transport:\n  address: env.example:3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	opts, err := parseArgs(nil)
	if err != nil {
		t.Fatal(err)
	}
	getenv := func(name string) string {
		if name == config.EnvironmentVariable {
			return configPath
		}
		return ""
	}
	cfg, err := loadConfig(opts, getenv)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Transport.Address != "env.example:3" {
		t.Errorf("address = %q", cfg.Transport.Address)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	opts, err := parseArgs([]string{"--address", "collector:5140", "--flush-timeout", "250ms"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(opts, func(string) string { return "" })
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if strings.Contains(cfg.Spill.Path, "${") {
		t.Errorf("spill path not expanded: %q", cfg.Spill.Path)
	}
	flush, err := cfg.Delivery.FlushTimeoutDuration()
	if err != nil || flush != 250*time.Millisecond {
		t.Errorf("flush timeout = %v (%v)", flush, err)
	}
}

type shippedLine struct {
	severity int
	label    string
	payload  string
}

func TestShipLines(t *testing.T) {
	var shipped []shippedLine
	ship := func(severity int, label, payload string) error {
		shipped = append(shipped, shippedLine{severity, label, payload})
		return nil
	}
	input := "first\r\nsecond\n\nno newline at end"
	var echo bytes.Buffer

	stats, err := shipLines(strings.NewReader(input), &echo, ship, record.SeverityWarn, "job", slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("shipLines: %v", err)
	}
	if echo.String() != input {
		t.Errorf("echo = %q, want input verbatim", echo.String())
	}
	want := []shippedLine{
		{record.SeverityWarn, "job", "first"},
		{record.SeverityWarn, "job", "second"},
		{record.SeverityWarn, "job", ""},
		{record.SeverityWarn, "job", "no newline at end"},
	}
	if len(shipped) != len(want) {
		t.Fatalf("shipped %d lines, want %d: %+v", len(shipped), len(want), shipped)
	}
	for i := range want {
		if shipped[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, shipped[i], want[i])
		}
	}
	if stats.shipped != 4 || stats.dropped != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestShipLinesCountsFailures(t *testing.T) {
	fatal := errors.New("transport misconfigured")
	calls := 0
	ship := func(int, string, string) error {
		calls++
		if calls == 1 {
			return queue.ErrOverflow
		}
		return fatal
	}
	stats, err := shipLines(strings.NewReader("a\nb\nc\n"), nil, ship, record.SeverityInfo, "", slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("shipLines: %v", err)
	}
	if calls != 3 {
		t.Errorf("ship called %d times, want 3 (reading continues after errors)", calls)
	}
	if stats.dropped != 3 || !errors.Is(stats.firstErr, fatal) {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExitCode(t *testing.T) {
	err := exec.Command("/bin/sh", "-c", "exit 42").Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if got := exitCode(exitErr); got != 42 {
		t.Errorf("exitCode = %d, want 42", got)
	}

	err = exec.Command("/bin/sh", "-c", "kill -TERM $$").Run()
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if got := exitCode(exitErr); got != 128+15 {
		t.Errorf("exitCode for SIGTERM = %d, want 143", got)
	}
}

func TestDiagnosticHandlerFormat(t *testing.T) {
	var text, structured bytes.Buffer
	slog.New(newDiagnosticHandler(&text, true, slog.LevelInfo)).Info("hello", "key", "value")
	slog.New(newDiagnosticHandler(&structured, false, slog.LevelInfo)).Info("hello", "key", "value")

	if !strings.Contains(text.String(), "key=value") {
		t.Errorf("terminal output = %q, want text format", text.String())
	}
	if !strings.HasPrefix(structured.String(), "{") || !strings.Contains(structured.String(), `"key":"value"`) {
		t.Errorf("piped output = %q, want JSON", structured.String())
	}
}
