// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package storage keeps the last reading of every device field, optionally
// persisted across restarts.
package storage

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/ffutop/pulsar-reader/device"
	"github.com/ffutop/pulsar-reader/internal/config"
)

// Reading is the outcome of one field read. Error is set when the read
// failed, in which case Value is unavailable.
type Reading struct {
	Device string       `cbor:"1,keyasint"`
	Field  string       `cbor:"2,keyasint"`
	Value  device.Value `cbor:"3,keyasint"`
	Error  string       `cbor:"4,keyasint,omitempty"`
	At     time.Time    `cbor:"5,keyasint"`
}

// Key returns the snapshot key of the reading.
func (r Reading) Key() string {
	return Key(r.Device, r.Field)
}

// Available reports whether the reading carries a value.
func (r Reading) Available() bool {
	return r.Error == ""
}

// Key builds the snapshot key of a device field.
func Key(deviceID, field string) string {
	return deviceID + "/" + field
}

// Snapshot holds the last reading per device field.
type Snapshot struct {
	Readings map[string]Reading `cbor:"1,keyasint"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Readings: make(map[string]Reading)}
}

// Storage defines the interface for persisting snapshots.
type Storage interface {
	// Load returns the stored snapshot, or an empty one if nothing was saved.
	Load() (*Snapshot, error)

	// Save persists s.
	Save(s *Snapshot) error

	Close() error
}

// New creates the backend selected by cfg.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file":
		return NewFileStorage(cfg.Path), nil
	case "mmap":
		return NewMmapStorage(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}
}

func encode(s *Snapshot) ([]byte, error) {
	data, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Snapshot, error) {
	s := NewSnapshot()
	if len(data) == 0 {
		return s, nil
	}
	if err := cbor.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Readings == nil {
		s.Readings = make(map[string]Reading)
	}
	return s, nil
}
