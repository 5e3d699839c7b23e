// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/logship/lib/codec"
)

// deviceState is the on-disk form of the device id file.
type deviceState struct {
	DeviceID  string    `cbor:"device_id"`
	CreatedAt time.Time `cbor:"created_at"`
}

// LoadOrCreateDeviceID returns the device id stored at path. When the
// file is missing, unreadable, or holds no valid id, a new random UUID
// is generated and written to path. Returns the id and whether it was
// newly created.
//
// A write failure is returned alongside the generated id: the caller
// can still use the id for this process.
func LoadOrCreateDeviceID(path string) (string, bool, error) {
	if id, ok := readDeviceID(path); ok {
		return id, false, nil
	}

	state := deviceState{DeviceID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := writeDeviceState(path, state); err != nil {
		return state.DeviceID, true, err
	}
	return state.DeviceID, true, nil
}

func readDeviceID(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var state deviceState
	if err := codec.Unmarshal(data, &state); err != nil {
		return "", false
	}
	if _, err := uuid.Parse(state.DeviceID); err != nil {
		return "", false
	}
	return state.DeviceID, true
}

func writeDeviceState(path string, state deviceState) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding device id: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating device id directory: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary device id file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary device id file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary device id file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary device id file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming device id file into place: %w", err)
	}

	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}
