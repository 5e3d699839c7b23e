// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Transport delivers formatted lines to the collector.
type Transport interface {
	// Connect opens the connection. Calling it while connected is a
	// no-op.
	Connect(ctx context.Context) error

	// Write sends one formatted record. The transport adds its own
	// framing (newline, token prefix, HTTP request).
	Write(ctx context.Context, line string) error

	// Close releases the connection. Safe to call repeatedly and on a
	// transport that never connected. Always returns nil.
	Close() error
}

// Mode selects the wire format.
type Mode string

const (
	ModeStream Mode = "stream"
	ModeRelay  Mode = "relay"
	ModeHTTP   Mode = "http"
)

// ErrNotConnected is returned by Write before a successful Connect or
// after the connection has failed.
var ErrNotConnected = errors.New("transport: not connected")

// Config selects and configures a Transport.
type Config struct {
	// Mode is the wire format. Empty means ModeStream.
	Mode Mode

	// Address is host:port of the collector (stream) or the relay
	// (relay). Unused in ModeHTTP.
	Address string

	// TLS wraps stream and relay connections in TLS.
	TLS bool

	// TLSConfig overrides the default TLS client configuration, whose
	// ServerName is taken from Address.
	TLSConfig *tls.Config

	// Token is the routing token. Required for relay and HTTP.
	Token string

	// Endpoint is the base URL for ModeHTTP; the token is appended as
	// the final path segment.
	Endpoint string

	// Compress gzips HTTP request bodies.
	Compress bool

	// DialTimeout bounds connection establishment. Zero means 10s.
	DialTimeout time.Duration

	// WriteTimeout bounds each Write. Zero means 30s.
	WriteTimeout time.Duration

	// Dialer opens network connections. Nil means a TCPDialer.
	Dialer Dialer
}

// ConfigError reports a Config that cannot produce a Transport.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("transport: invalid %s: %s", e.Field, e.Reason)
}

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// New validates config and returns the Transport it describes. No
// network activity happens until Connect.
func New(config Config) (Transport, error) {
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	writeTimeout := config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = &TCPDialer{Timeout: dialTimeout}
	}

	mode := config.Mode
	if mode == "" {
		mode = ModeStream
	}

	switch mode {
	case ModeStream, ModeRelay:
		host, port, err := net.SplitHostPort(config.Address)
		if err != nil || host == "" || port == "" {
			return nil, &ConfigError{Field: "address", Reason: fmt.Sprintf("%q is not host:port", config.Address)}
		}
		stream := &streamTransport{
			dialer:       dialer,
			address:      config.Address,
			dialTimeout:  dialTimeout,
			writeTimeout: writeTimeout,
		}
		if mode == ModeRelay {
			if config.Token == "" {
				return nil, &ConfigError{Field: "token", Reason: "relay mode requires a routing token"}
			}
			stream.prefix = config.Token + " "
		}
		if config.TLS {
			stream.tlsConfig = config.TLSConfig
			if stream.tlsConfig == nil {
				stream.tlsConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
			}
		}
		return stream, nil

	case ModeHTTP:
		if config.Token == "" {
			return nil, &ConfigError{Field: "token", Reason: "http mode requires a token"}
		}
		endpoint, err := url.Parse(config.Endpoint)
		if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
			return nil, &ConfigError{Field: "endpoint", Reason: fmt.Sprintf("%q is not an http(s) URL", config.Endpoint)}
		}
		return newHTTPTransport(endpoint.JoinPath(config.Token).String(), config, dialer, writeTimeout), nil

	default:
		return nil, &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", config.Mode)}
	}
}
