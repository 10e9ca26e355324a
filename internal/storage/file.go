// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage keeps the snapshot as a CBOR document. Save writes a temporary
// file next to the target and renames it over, so a crash never leaves a
// half-written snapshot behind.
type FileStorage struct {
	path string
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (fs *FileStorage) Load() (*Snapshot, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return decode(data)
}

// Save writes s to disk.
func (fs *FileStorage) Save(s *Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(fs.path), filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync file to disk: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", fs.path, err)
	}
	return nil
}

// Close is a no-op, the file is only open during Load and Save.
func (fs *FileStorage) Close() error {
	return nil
}
