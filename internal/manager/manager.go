// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package manager owns the shared transport and the set of configured
// devices behind it.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ffutop/pulsar-reader/device"
	"github.com/ffutop/pulsar-reader/internal/config"
	"github.com/ffutop/pulsar-reader/transport"
	"github.com/ffutop/pulsar-reader/transport/serial"
	"github.com/ffutop/pulsar-reader/transport/tcp"
	"github.com/ffutop/pulsar-reader/transport/websocket"
)

// Manager is a registry of devices sharing one transport.
type Manager struct {
	transport transport.Transport

	mu      sync.RWMutex
	devices map[string]*device.Device
}

// New returns an empty Manager on t.
func New(t transport.Transport) *Manager {
	return &Manager{
		transport: t,
		devices:   make(map[string]*device.Device),
	}
}

// NewTransport builds the transport selected by the connection address.
func NewTransport(cfg config.ConnectionConfig) (transport.Transport, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("connection address is empty")
	}
	switch cfg.TransportType() {
	case config.TransportSerial:
		s := cfg.Serial
		if s.Device == "" {
			s.Device = cfg.Address
		}
		slog.Info("init pulsar serial transport", "device", s.Device, "baudRate", s.BaudRate, "dataBits", s.DataBits, "parity", s.Parity, "stopBits", s.StopBits, "timeout", s.Timeout)
		return serial.NewClient(s), nil
	case config.TransportWebSocket:
		ws := cfg.WebSocket
		if ws.URL == "" {
			ws.URL = cfg.Address
		}
		slog.Info("init pulsar websocket transport", "url", ws.URL, "timeout", cfg.Timeout)
		return websocket.NewClient(ws, cfg.Timeout), nil
	default:
		slog.Info("init pulsar tcp transport", "address", cfg.Address, "timeout", cfg.Timeout)
		return tcp.NewClient(cfg.Address, cfg.Timeout), nil
	}
}

// FromConfig opens the configured transport and creates every configured
// device on it.
func FromConfig(cfg *config.Config) (*Manager, error) {
	t, err := NewTransport(cfg.Connection)
	if err != nil {
		return nil, err
	}
	m := New(t)
	for _, id := range cfg.DeviceIDs() {
		dc := cfg.Devices[id]
		kind, err := device.ParseKind(dc.Type)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("device %q: %w", id, err)
		}
		d, err := device.New(t, kind, dc.Name, dc.SerialID)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("device %q: %w", id, err)
		}
		if err := m.Add(id, d); err != nil {
			t.Close()
			return nil, err
		}
	}
	return m, nil
}

// Connect opens the shared transport. A failure is not fatal: the transport
// reconnects on the next exchange.
func (m *Manager) Connect(ctx context.Context) error {
	return m.transport.Connect(ctx)
}

// Add registers d under id.
func (m *Manager) Add(id string, d *device.Device) error {
	if d == nil {
		return fmt.Errorf("device %q is nil", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; ok {
		return fmt.Errorf("device %q already registered", id)
	}
	m.devices[id] = d
	slog.Debug("device registered", "id", id, "name", d.Name(), "kind", d.Kind(), "address", d.Address())
	return nil
}

// Remove unregisters the device with the given id.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return fmt.Errorf("device %q not registered", id)
	}
	delete(m.devices, id)
	return nil
}

// Get returns the device registered under id.
func (m *Manager) Get(id string) (*device.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	return d, ok
}

// Devices returns the registered ids in sorted order.
func (m *Manager) Devices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes the shared transport.
func (m *Manager) Close() error {
	return m.transport.Close()
}
