// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// Dialer opens connections to the collector or relay.
type Dialer interface {
	DialContext(ctx context.Context, address string) (net.Conn, error)
}

var _ Dialer = (*TCPDialer)(nil)

// TCPDialer opens plain TCP connections.
type TCPDialer struct {
	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to address (host:port).
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout, KeepAlive: 30 * time.Second}).DialContext(ctx, "tcp", address)
}

// IsExpectedCloseError reports whether err is the ordinary result of
// the other side going away: EOF, a closed connection, a broken pipe
// or a reset.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
