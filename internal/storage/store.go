// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

import (
	"fmt"
	"sort"
	"sync"
)

// Store is the in-memory view of the last readings, written through to a
// Storage backend on every change.
type Store struct {
	backend Storage

	mu       sync.RWMutex
	snapshot *Snapshot
}

// Open loads the snapshot held by backend.
func Open(backend Storage) (*Store, error) {
	s, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &Store{backend: backend, snapshot: s}, nil
}

// Record replaces the reading of r's device field and saves the snapshot.
// The in-memory view is updated even if saving fails.
func (s *Store) Record(r Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Readings[r.Key()] = r
	if err := s.backend.Save(s.snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Latest returns the last reading of a device field.
func (s *Store) Latest(deviceID, field string) (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.snapshot.Readings[Key(deviceID, field)]
	return r, ok
}

// All returns every reading ordered by device and field.
func (s *Store) All() []Reading {
	return s.filter(func(Reading) bool { return true })
}

// Device returns the readings of one device ordered by field.
func (s *Store) Device(deviceID string) []Reading {
	return s.filter(func(r Reading) bool { return r.Device == deviceID })
}

func (s *Store) filter(keep func(Reading) bool) []Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reading, 0, len(s.snapshot.Readings))
	for _, r := range s.snapshot.Readings {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Device != out[j].Device {
			return out[i].Device < out[j].Device
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
