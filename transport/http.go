// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// httpTransport POSTs each line as its own request.
type httpTransport struct {
	client   *http.Client
	url      string
	compress bool

	mu        sync.Mutex
	connected bool
}

func newHTTPTransport(target string, config Config, dialer Dialer, writeTimeout time.Duration) *httpTransport {
	roundTripper := &http.Transport{
		DialContext: func(ctx context.Context, _, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, address)
		},
		TLSClientConfig:     config.TLSConfig,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
	}
	return &httpTransport{
		client:   &http.Client{Transport: roundTripper, Timeout: writeTimeout},
		url:      target,
		compress: config.Compress,
	}
}

// Connect only marks the transport usable; HTTP connections are
// opened per request by the client's pool.
func (h *httpTransport) Connect(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = true
	return nil
}

func (h *httpTransport) Write(ctx context.Context, line string) error {
	h.mu.Lock()
	connected := h.connected
	h.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	body, err := h.encode(line)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: building request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if h.compress {
		request.Header.Set("Content-Encoding", "gzip")
	}

	response, err := h.client.Do(request)
	if err != nil {
		return fmt.Errorf("transport: posting to collector: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 64*1024))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("transport: collector returned %s", response.Status)
	}
	return nil
}

func (h *httpTransport) encode(line string) ([]byte, error) {
	if !h.compress {
		return []byte(line), nil
	}
	var buffer bytes.Buffer
	writer := gzip.NewWriter(&buffer)
	if _, err := io.WriteString(writer, line); err != nil {
		return nil, fmt.Errorf("transport: compressing body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("transport: compressing body: %w", err)
	}
	return buffer.Bytes(), nil
}

func (h *httpTransport) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = false
	h.client.CloseIdleConnections()
	return nil
}
