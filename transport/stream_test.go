// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bureau-foundation/logship/lib/testutil"
)

// lineServer accepts one connection and reports every line it reads.
func lineServer(t *testing.T, listener net.Listener) <-chan string {
	t.Helper()
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func TestStreamWritesNewlineTerminatedLines(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()
	lines := lineServer(t, listener)

	transport, err := New(Config{Mode: ModeStream, Address: listener.Addr().String()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer transport.Close()

	ctx := context.Background()
	if err := transport.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := transport.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	for _, line := range []string{"first", "second"} {
		if err := transport.Write(ctx, line); err != nil {
			t.Fatalf("Write(%q): %v", line, err)
		}
	}

	for _, want := range []string{"first", "second"} {
		if got := testutil.RequireReceive(t, lines, 5*time.Second, "waiting for line"); got != want {
			t.Errorf("server read %q, want %q", got, want)
		}
	}
}

func TestRelayPrefixesToken(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()
	lines := lineServer(t, listener)

	transport, err := New(Config{Mode: ModeRelay, Address: listener.Addr().String(), Token: "route-7"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer transport.Close()

	ctx := context.Background()
	if err := transport.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := transport.Write(ctx, "hello relay"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := testutil.RequireReceive(t, lines, 5*time.Second, "waiting for line"); got != "route-7 hello relay" {
		t.Errorf("server read %q, want %q", got, "route-7 hello relay")
	}
}

func TestStreamWriteBeforeConnect(t *testing.T) {
	transport, err := New(Config{Address: "127.0.0.1:9"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := transport.Write(context.Background(), "x"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Write before Connect = %v, want ErrNotConnected", err)
	}
}

// pipeDialer hands out one end of a net.Pipe and keeps the other.
type pipeDialer struct {
	peers chan net.Conn
}

func (d *pipeDialer) DialContext(context.Context, string) (net.Conn, error) {
	local, remote := net.Pipe()
	d.peers <- remote
	return local, nil
}

func TestStreamWriteFailsAfterPeerCloses(t *testing.T) {
	dialer := &pipeDialer{peers: make(chan net.Conn, 2)}
	transport, err := New(Config{Address: "collector:1", Dialer: dialer, WriteTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := transport.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	peer := <-dialer.peers
	peer.Close()

	if err := transport.Write(ctx, "lost"); err == nil {
		t.Fatal("Write to a closed peer succeeded")
	}
	// The failed connection was dropped.
	if err := transport.Write(ctx, "again"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Write after failure = %v, want ErrNotConnected", err)
	}
	// Reconnecting dials a fresh pipe.
	if err := transport.Connect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	fresh := <-dialer.peers
	defer fresh.Close()
	go func() {
		buffer := make([]byte, 64)
		fresh.Read(buffer)
	}()
	if err := transport.Write(ctx, "found"); err != nil {
		t.Fatalf("Write after reconnect: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestStreamOverTLS(t *testing.T) {
	// httptest provides a self-signed certificate and a client trusting it.
	certServer := httptest.NewTLSServer(http.NotFoundHandler())
	defer certServer.Close()

	listener, err := tls.Listen("tcp", "127.0.0.1:0", certServer.TLS)
	if err != nil {
		t.Fatalf("tls.Listen: %v", err)
	}
	defer listener.Close()
	lines := lineServer(t, listener)

	clientTLS := certServer.Client().Transport.(*http.Transport).TLSClientConfig.Clone()
	clientTLS.ServerName = "example.com"

	transport, err := New(Config{Address: listener.Addr().String(), TLS: true, TLSConfig: clientTLS})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer transport.Close()

	ctx := context.Background()
	if err := transport.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := transport.Write(ctx, "secret"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := testutil.RequireReceive(t, lines, 5*time.Second, "waiting for line"); got != "secret" {
		t.Errorf("server read %q, want %q", got, "secret")
	}
}
