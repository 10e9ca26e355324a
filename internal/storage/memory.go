// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

// MemoryStorage is a no-op storage (non-persistent).
type MemoryStorage struct{}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (ms *MemoryStorage) Load() (*Snapshot, error) {
	return NewSnapshot(), nil
}

func (ms *MemoryStorage) Save(s *Snapshot) error {
	return nil
}

func (ms *MemoryStorage) Close() error {
	return nil
}
