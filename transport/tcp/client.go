// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcp implements the Pulsar transport over a raw TCP stream, as
// offered by serial device servers ("serial over IP").
package tcp

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ffutop/pulsar-reader/pulsar/frame"
	"github.com/ffutop/pulsar-reader/transport"
)

const (
	tcpTimeout = 3 * time.Second
)

var _ transport.Transport = (*Client)(nil)

// Client implements transport.Transport on a TCP connection.
type Client struct {
	Address string
	Timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewClient allocates and initializes a TCP Client.
func NewClient(address string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = tcpTimeout
	}
	return &Client{
		Address: address,
		Timeout: timeout,
	}
}

// Send writes request and reads responseSize bytes back.
func (c *Client) Send(ctx context.Context, request []byte, responseSize int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Ensure connection is open
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.Address, err)
	}

	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.close()
		return nil, err
	}

	slog.Debug("send to pulsar device", "address", c.Address, "request", hex.EncodeToString(request))
	if _, err := c.conn.Write(request); err != nil {
		c.close() // Close connection on write failure to force reconnect next time
		return nil, fmt.Errorf("failed to write to connection: %w", err)
	}

	data, err := frame.ReadFrame(c.conn, responseSize, deadline)
	if err != nil {
		if transport.IsTimeout(err) {
			slog.Debug("no complete reply from pulsar device", "address", c.Address, "received", hex.EncodeToString(data), "want", responseSize)
			// Late bytes of this reply would desync the next exchange.
			c.close()
			return data, nil
		}
		c.close()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	slog.Debug("recv from pulsar device", "address", c.Address, "response", hex.EncodeToString(data))
	return data, nil
}

// Connect implements transport.Transport.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect()
}

// Close implements transport.Transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	return nil
}

// connect ensures there is an active connection. Caller must hold the mutex.
func (c *Client) connect() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", c.Address, c.Timeout)
	if err != nil {
		return err
	}
	slog.Info("connected to serial server", "address", c.Address)
	c.conn = conn
	return nil
}

// close closes the connection and resets the state. Caller must hold the mutex.
func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
