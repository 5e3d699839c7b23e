// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

// streamTransport writes newline-terminated lines to a TCP (or TLS)
// connection. A non-empty prefix makes it the relay variant.
type streamTransport struct {
	dialer       Dialer
	address      string
	tlsConfig    *tls.Config
	prefix       string
	dialTimeout  time.Duration
	writeTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func (s *streamTransport) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	dialContext, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	conn, err := s.dialer.DialContext(dialContext, s.address)
	if err != nil {
		return fmt.Errorf("transport: connecting to %s: %w", s.address, err)
	}
	if s.tlsConfig != nil {
		tlsConn := tls.Client(conn, s.tlsConfig)
		if err := tlsConn.HandshakeContext(dialContext); err != nil {
			conn.Close()
			return fmt.Errorf("transport: TLS handshake with %s: %w", s.address, err)
		}
		conn = tlsConn
	}
	s.conn = conn
	return nil
}

func (s *streamTransport) Write(ctx context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(s.writeTimeout)
	if contextDeadline, ok := ctx.Deadline(); ok && contextDeadline.Before(deadline) {
		deadline = contextDeadline
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		s.dropLocked()
		return fmt.Errorf("transport: setting write deadline: %w", err)
	}

	frame := make([]byte, 0, len(s.prefix)+len(line)+1)
	frame = append(frame, s.prefix...)
	frame = append(frame, line...)
	frame = append(frame, '\n')
	if _, err := s.conn.Write(frame); err != nil {
		s.dropLocked()
		return fmt.Errorf("transport: writing to %s: %w", s.address, err)
	}
	return nil
}

func (s *streamTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
	return nil
}

// dropLocked closes and forgets the connection so the next Connect
// dials afresh. Close errors on a connection being discarded carry no
// information the caller can act on.
func (s *streamTransport) dropLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
