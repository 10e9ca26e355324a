// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const (
	// Pulsar meters talk 9600 8N1 and answer within a few seconds.
	serialBaudRate    = 9600
	serialTimeout     = 3 * time.Second
	serialIdleTimeout = 60 * time.Second
)

// port has configuration and I/O controller.
type port struct {
	// Serial port configuration.
	serial.Config

	IdleTimeout time.Duration

	mu sync.Mutex
	// rwc is the platform-dependent serial port, nil while closed.
	rwc          io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

func (p *port) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connect(ctx)
}

// connect opens the serial port if it is not open. Caller must hold the mutex.
func (p *port) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.rwc == nil {
		rwc, err := serial.Open(&p.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", p.Config.Address, err)
		}
		slog.Info("serial port opened", "device", p.Config.Address, "baudRate", p.Config.BaudRate)
		p.rwc = rwc
	}
	return nil
}

func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closeTimer != nil {
		p.closeTimer.Stop()
	}
	return p.close()
}

// close closes the serial port if it is open. Caller must hold the mutex.
func (p *port) close() (err error) {
	if p.rwc != nil {
		err = p.rwc.Close()
		p.rwc = nil
		slog.Info("serial port closed", "device", p.Config.Address)
	}
	return
}

func (p *port) startCloseTimer() {
	if p.IdleTimeout <= 0 {
		return
	}
	if p.closeTimer == nil {
		p.closeTimer = time.AfterFunc(p.IdleTimeout, p.closeIdle)
	} else {
		p.closeTimer.Reset(p.IdleTimeout)
	}
}

// closeIdle closes the port if last activity is passed behind IdleTimeout.
func (p *port) closeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.IdleTimeout <= 0 {
		return
	}

	if idle := time.Since(p.lastActivity); idle >= p.IdleTimeout {
		slog.Debug("closing serial port due to idle timeout", "device", p.Config.Address, "idle", idle)
		p.close()
	}
}
