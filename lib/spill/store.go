// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spill

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/logship/lib/record"
)

// DefaultMaxBytes is the default size cap of the spill file.
const DefaultMaxBytes = 10 * 1024 * 1024

// RecoveredLabel is the label given to records recovered from lines
// that do not match the spill grammar.
const RecoveredLabel = "LogStorageError"

// ErrRecordTooLarge is returned by Append when a single serialized
// record is larger than the store's cap.
var ErrRecordTooLarge = errors.New("spill: record larger than store cap")

// linePattern is the spill line grammar. The optional minus sign lets
// record.SeverityUnset round-trip.
var linePattern = regexp.MustCompile(`^(-?[0-9]+);([^;]*);(.*)$`)

// Options configures a Store.
type Options struct {
	// MaxBytes caps the file size. Zero means DefaultMaxBytes.
	MaxBytes int64

	// Logger receives truncation and recovery messages. Nil
	// discards them.
	Logger *slog.Logger

	// OnTruncate, if set, is called with the number of bytes
	// discarded each time the cap forces a truncation. Called with
	// the store lock held; it must not call back into the Store.
	OnTruncate func(droppedBytes int64)
}

// Store is the durable spill file. The zero value is not usable; call
// Open.
type Store struct {
	mu          sync.Mutex
	path        string
	maxBytes    int64
	logger      *slog.Logger
	onTruncate  func(int64)
	truncations uint64
}

// Open returns a Store backed by the file at path. The file itself is
// created lazily by the first Append; its parent directory is created
// here.
func Open(path string, options Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("spill: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("spill: creating directory for %s: %w", path, err)
	}
	maxBytes := options.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		path:       path,
		maxBytes:   maxBytes,
		logger:     logger,
		onTruncate: options.OnTruncate,
	}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Encode serializes rec as one spill line, newline included. A
// semicolon in the label would end the label field early, so it is
// written as a comma.
func Encode(rec record.Record) string {
	var builder strings.Builder
	builder.Grow(len(rec.Label) + len(rec.Payload) + 8)
	builder.WriteString(strconv.Itoa(rec.Severity))
	builder.WriteByte(';')
	builder.WriteString(record.FlattenLines(strings.ReplaceAll(rec.Label, ";", ",")))
	builder.WriteByte(';')
	builder.WriteString(record.FlattenLines(rec.Payload))
	builder.WriteByte('\n')
	return builder.String()
}

// Decode parses one spill line (without its trailing newline). A line
// that does not match the grammar becomes a synthetic error record
// carrying the raw line, and ok is false.
func Decode(line string) (rec record.Record, ok bool) {
	match := linePattern.FindStringSubmatch(line)
	if match != nil {
		severity, err := strconv.Atoi(match[1])
		if err == nil {
			return record.Record{Severity: severity, Label: match[2], Payload: match[3]}, true
		}
	}
	return record.Record{Severity: record.SeverityError, Label: RecoveredLabel, Payload: line}, false
}

// Append writes rec to the end of the store. If the write would take
// the file past its cap, the whole file is truncated first.
func (s *Store) Append(rec record.Record) error {
	line := Encode(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if int64(len(line)) > s.maxBytes {
		return fmt.Errorf("%w: %d bytes, cap %d", ErrRecordTooLarge, len(line), s.maxBytes)
	}

	size, err := s.sizeLocked()
	if err != nil {
		return err
	}
	if size+int64(len(line)) > s.maxBytes {
		if err := s.resetLocked(); err != nil {
			return fmt.Errorf("spill: truncating at cap: %w", err)
		}
		s.truncations++
		s.logger.Warn("spill store truncated at size cap",
			"path", s.path,
			"dropped_bytes", size,
			"max_bytes", s.maxBytes,
		)
		if s.onTruncate != nil {
			s.onTruncate(size)
		}
	}

	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("spill: opening %s: %w", s.path, err)
	}
	if _, err := io.WriteString(file, line); err != nil {
		file.Close()
		return fmt.Errorf("spill: appending to %s: %w", s.path, err)
	}
	if err := unix.Fdatasync(int(file.Fd())); err != nil {
		file.Close()
		return fmt.Errorf("spill: syncing %s: %w", s.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("spill: closing %s: %w", s.path, err)
	}
	return nil
}

// DrainAll reads every record in insertion order. Malformed lines are
// recovered, never skipped, and never abort the scan. A missing file
// yields no records. With remove set, the file is deleted after a
// complete read.
func (s *Store) DrainAll(remove bool) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("spill: opening %s: %w", s.path, err)
	}

	var records []record.Record
	recovered := 0
	reader := bufio.NewReader(file)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			rec, ok := Decode(line)
			if !ok {
				recovered++
			}
			records = append(records, rec)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			file.Close()
			return records, fmt.Errorf("spill: reading %s: %w", s.path, readErr)
		}
	}
	file.Close()

	if recovered > 0 {
		s.logger.Warn("recovered malformed spill lines",
			"path", s.path,
			"recovered", recovered,
			"total", len(records),
		)
	}

	if remove {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return records, fmt.Errorf("spill: removing %s: %w", s.path, err)
		}
	}
	return records, nil
}

// Reset leaves the store empty. A missing file is not an error.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

func (s *Store) resetLocked() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("spill: removing %s: %w", s.path, err)
	}
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("spill: creating %s: %w", s.path, err)
	}
	return file.Close()
}

// Size returns the current file size in bytes; zero when the file
// does not exist.
func (s *Store) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeLocked()
}

func (s *Store) sizeLocked() (int64, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("spill: stat %s: %w", s.path, err)
	}
	return info.Size(), nil
}

// Truncations returns how many times the cap has forced a truncation
// since Open.
func (s *Store) Truncations() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncations
}
