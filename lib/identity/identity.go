// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// traceDomainKey separates trace id hashes from any other BLAKE3 use
// of the same machine properties.
var traceDomainKey = [32]byte{
	'l', 'o', 'g', 's', 'h', 'i', 'p', '.', 't', 'r', 'a', 'c', 'e', 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// machineIDPath is read as part of the trace id fingerprint.
var machineIDPath = "/etc/machine-id"

// HostName returns the system host name with characters that would
// break key=value output replaced by '-'. Returns "unknown" when the
// name cannot be read.
func HostName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return SanitizeHostName(name)
}

// SanitizeHostName replaces whitespace, '=', '"' and control
// characters with '-'.
func SanitizeHostName(name string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == '=' || r == '"' || r == 0x7f {
			return '-'
		}
		return r
	}, name)
}

// TraceID returns a stable 32-character upper-case hex fingerprint of
// this machine: a keyed BLAKE3 hash of the host name, the systemd
// machine id, and the OS and architecture. When neither the host name
// nor the machine id can be read, the id is random for this process.
func TraceID() string {
	hostName, hostErr := os.Hostname()
	machineID, machineErr := os.ReadFile(machineIDPath)
	if hostErr != nil && machineErr != nil {
		var random [16]byte
		rand.Read(random[:])
		return strings.ToUpper(hex.EncodeToString(random[:]))
	}
	return traceIDFrom(hostName, strings.TrimSpace(string(machineID)), runtime.GOOS, runtime.GOARCH)
}

func traceIDFrom(properties ...string) string {
	hasher, err := blake3.NewKeyed(traceDomainKey[:])
	if err != nil {
		panic("identity: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, property := range properties {
		// Length-prefix each property so ("ab","c") and ("a","bc")
		// hash differently.
		fmt.Fprintf(hasher, "%d:%s", len(property), property)
	}
	sum := hasher.Sum(nil)
	return strings.ToUpper(hex.EncodeToString(sum[:16]))
}

// ErrInvalidToken is wrapped by ValidateToken failures.
var ErrInvalidToken = errors.New("identity: invalid token")

// ValidateToken checks that token is a UUID in canonical text form.
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	if len(token) != 36 {
		return fmt.Errorf("%w: %q is not a canonical UUID", ErrInvalidToken, token)
	}
	if _, err := uuid.Parse(token); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
