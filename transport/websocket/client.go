// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package websocket implements the Pulsar transport through a
// serial-to-WebSocket bridge. Frames travel as binary messages; a reply may
// be split over several messages.
package websocket

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ffutop/pulsar-reader/internal/config"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
	"github.com/ffutop/pulsar-reader/transport"
)

const (
	wsTimeout          = 3 * time.Second
	wsHandshakeTimeout = 10 * time.Second
)

var _ transport.Transport = (*Client)(nil)

// Client implements transport.Transport on a WebSocket connection.
type Client struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
	Timeout       time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient allocates a WebSocket Client. It does not dial until Connect or
// the first Send.
func NewClient(cfg config.WebSocketConfig, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = wsTimeout
	}
	return &Client{
		URL:           cfg.URL,
		Username:      cfg.Username,
		Password:      cfg.Password,
		SkipSSLVerify: cfg.SkipSSLVerify,
		Timeout:       timeout,
	}
}

// Send writes request as one binary message and collects responseSize bytes
// from the following messages.
func (c *Client) Send(ctx context.Context, request []byte, responseSize int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	slog.Debug("send to pulsar device", "url", c.URL, "request", hex.EncodeToString(request))
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		c.close()
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, request); err != nil {
		c.close()
		return nil, fmt.Errorf("failed to write message: %w", err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		c.close()
		return nil, err
	}
	data, err := frame.ReadFrame(&messageReader{conn: c.conn}, responseSize, deadline)
	if err != nil {
		// gorilla/websocket connections are unusable after any read error.
		c.close()
		if transport.IsTimeout(err) {
			slog.Debug("no complete reply from pulsar device", "url", c.URL, "received", hex.EncodeToString(data), "want", responseSize)
			return data, nil
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	slog.Debug("recv from pulsar device", "url", c.URL, "response", hex.EncodeToString(data))
	return data, nil
}

// Connect implements transport.Transport.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect(ctx)
}

// Close implements transport.Transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	return nil
}

// connect dials the bridge if there is no open connection. Caller must hold
// the mutex.
func (c *Client) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: c.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if c.Username != "" && c.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, c.URL, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection to %s failed (HTTP %d): %w", c.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection to %s failed: %w", c.URL, err)
	}
	slog.Info("connected to websocket bridge", "url", c.URL)
	c.conn = conn
	return nil
}

// close closes the connection. Caller must hold the mutex.
func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// messageReader turns a sequence of binary messages into a byte stream.
type messageReader struct {
	conn *websocket.Conn
	buf  []byte
}

func (r *messageReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		// Bridges may interleave text status messages; only binary
		// messages carry meter bytes.
		if messageType != websocket.BinaryMessage {
			continue
		}
		r.buf = data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
