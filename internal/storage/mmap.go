// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

const (
	// MmapSize is the size of the mapped region.
	MmapSize   = 64 * 1024
	lengthSize = 4
)

// MmapStorage implements persistence using a memory-mapped file.
//
// Layout:
// - Length: 4 bytes, little-endian (Offset 0)
// - Snapshot: CBOR document (Offset 4)
// Total Size: 65536 bytes
type MmapStorage struct {
	path string
	file *os.File
	data mmap.MMap
}

// NewMmapStorage creates a new MmapStorage.
func NewMmapStorage(path string) *MmapStorage {
	return &MmapStorage{
		path: path,
	}
}

// Load maps the file, creating it if necessary, and decodes the snapshot.
func (ms *MmapStorage) Load() (*Snapshot, error) {
	if ms.data == nil {
		if err := ms.open(); err != nil {
			return nil, err
		}
	}

	n := binary.LittleEndian.Uint32(ms.data[:lengthSize])
	if n > MmapSize-lengthSize {
		return nil, fmt.Errorf("corrupt mmap file %s: length %d exceeds region", ms.path, n)
	}
	return decode(ms.data[lengthSize : lengthSize+int(n)])
}

func (ms *MmapStorage) open() error {
	// Open file, creating if necessary
	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open mmap file: %w", err)
	}

	// Ensure file size
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if fi.Size() != MmapSize {
		if err := f.Truncate(MmapSize); err != nil {
			f.Close()
			return fmt.Errorf("failed to resize mmap file: %w", err)
		}
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap failed: %w", err)
	}
	ms.file = f
	ms.data = data
	return nil
}

// Save copies s into the mapped region and flushes it to disk.
func (ms *MmapStorage) Save(s *Snapshot) error {
	if ms.data == nil {
		if err := ms.open(); err != nil {
			return err
		}
	}
	data, err := encode(s)
	if err != nil {
		return err
	}
	if len(data) > MmapSize-lengthSize {
		return fmt.Errorf("snapshot of %d bytes does not fit the %d byte region", len(data), MmapSize-lengthSize)
	}
	copy(ms.data[lengthSize:], data)
	binary.LittleEndian.PutUint32(ms.data[:lengthSize], uint32(len(data)))
	return ms.data.Flush()
}

// Close unmaps and closes the file.
func (ms *MmapStorage) Close() error {
	var err error
	if ms.data != nil {
		if e := ms.data.Unmap(); e != nil {
			err = e
		}
		ms.data = nil
	}
	if ms.file != nil {
		if e := ms.file.Close(); e != nil {
			err = e
		}
		ms.file = nil
	}
	return err
}
