// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package serial implements the Pulsar transport over a local serial port.
package serial

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/grid-x/serial"

	"github.com/ffutop/pulsar-reader/internal/config"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
	"github.com/ffutop/pulsar-reader/transport"
)

var _ transport.Transport = (*Client)(nil)

// Client implements transport.Transport on a serial line.
type Client struct {
	port
}

// NewClient allocates and initializes a serial Client.
func NewClient(cfg config.SerialConfig) *Client {
	client := &Client{}

	client.port.Config.Address = cfg.Device
	client.port.Config.BaudRate = cfg.BaudRate
	client.port.Config.DataBits = cfg.DataBits
	client.port.Config.StopBits = cfg.StopBits
	client.port.Config.Parity = cfg.Parity
	client.port.Config.Timeout = cfg.Timeout
	if client.port.Config.BaudRate == 0 {
		client.port.Config.BaudRate = serialBaudRate
	}
	if client.port.Config.Timeout == 0 {
		client.port.Config.Timeout = serialTimeout
	}
	if cfg.RS485 {
		client.port.Config.RS485.Enabled = true
		client.port.Config.RS485.DelayRtsBeforeSend = cfg.DelayRtsBeforeSend
		client.port.Config.RS485.DelayRtsAfterSend = cfg.DelayRtsAfterSend
		client.port.Config.RS485.RtsHighDuringSend = cfg.RtsHighDuringSend
		client.port.Config.RS485.RtsHighAfterSend = cfg.RtsHighAfterSend
		client.port.Config.RS485.RxDuringTx = cfg.RxDuringTx
	}

	client.IdleTimeout = cfg.IdleTimeout
	if client.IdleTimeout == 0 {
		client.IdleTimeout = serialIdleTimeout
	}
	return client
}

// Send writes request to the port and reads responseSize bytes back.
func (c *Client) Send(ctx context.Context, request []byte, responseSize int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	c.lastActivity = time.Now()
	c.startCloseTimer()

	slog.Debug("send to pulsar device", "port", c.Config.Address, "request", hex.EncodeToString(request))
	if _, err := c.rwc.Write(request); err != nil {
		c.close()
		return nil, fmt.Errorf("failed to write to %s: %w", c.Config.Address, err)
	}

	data, err := frame.ReadFrame(c.rwc, responseSize, time.Now().Add(c.Config.Timeout))
	if err != nil {
		if transport.IsTimeout(err) || errors.Is(err, serial.ErrTimeout) {
			slog.Debug("no complete reply from pulsar device", "port", c.Config.Address, "received", hex.EncodeToString(data), "want", responseSize)
			return data, nil
		}
		c.close()
		return nil, fmt.Errorf("failed to read from %s: %w", c.Config.Address, err)
	}
	slog.Debug("recv from pulsar device", "port", c.Config.Address, "response", hex.EncodeToString(data))
	return data, nil
}
