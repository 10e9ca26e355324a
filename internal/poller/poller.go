// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package poller reads every field of every managed device on a fixed
// interval and records the outcome.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/ffutop/pulsar-reader/internal/config"
	"github.com/ffutop/pulsar-reader/internal/manager"
	"github.com/ffutop/pulsar-reader/internal/storage"
)

// Poller drives periodic reads.
type Poller struct {
	manager  *manager.Manager
	store    *storage.Store
	interval time.Duration

	now func() time.Time
}

// New creates a Poller. A non-positive interval selects the default.
func New(m *manager.Manager, store *storage.Store, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	return &Poller{
		manager:  m,
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

// Run polls immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.manager.Connect(ctx); err != nil {
		// The transport reconnects on the next exchange.
		slog.Error("Failed to connect transport", "err", err)
	}

	slog.Info("Starting poller", "devices", len(p.manager.Devices()), "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PollOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce reads every field of every device sequentially. It returns the
// number of failed reads. Failures are logged and recorded; they never stop
// the round.
func (p *Poller) PollOnce(ctx context.Context) int {
	failed := 0
	for _, id := range p.manager.Devices() {
		d, ok := p.manager.Get(id)
		if !ok {
			continue
		}
		for _, field := range d.Fields() {
			if ctx.Err() != nil {
				return failed
			}
			r := storage.Reading{Device: id, Field: string(field)}
			v, err := d.Read(ctx, field)
			r.At = p.now()
			if err != nil {
				failed++
				r.Error = err.Error()
				slog.Warn("Failed to read field", "device", id, "field", field, "err", err)
			} else {
				r.Value = v
				slog.Debug("Read field", "device", id, "field", field, "value", v.String())
			}
			if err := p.store.Record(r); err != nil {
				slog.Error("Failed to record reading", "device", id, "field", field, "err", err)
			}
		}
	}
	return failed
}
