// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ffutop/pulsar-reader/device"
	"github.com/ffutop/pulsar-reader/internal/config"
)

var readAt = time.Date(2024, 3, 15, 10, 30, 0, 123000000, time.UTC)

func sampleSnapshot() *Snapshot {
	s := NewSnapshot()
	for _, r := range []Reading{
		{Device: "kitchen", Field: "battery_voltage", Value: device.Value{Type: device.TypeFloat, Float: 3.6}, At: readAt},
		{Device: "kitchen", Field: "current_water_consumption_ch1", Value: device.Value{Type: device.TypeUint, Uint: 12345}, At: readAt},
		{Device: "kitchen", Field: "daylight_saving_time", Value: device.Value{Type: device.TypeBool, Bool: true}, At: readAt},
		{Device: "kitchen", Field: "system_time", Value: device.Value{Type: device.TypeTime, Time: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)}, At: readAt},
		{Device: "bath", Field: "device_temperature", Error: "frame too short", At: readAt},
	} {
		s.Readings[r.Key()] = r
	}
	return s
}

func assertSnapshot(t *testing.T, got, want *Snapshot) {
	t.Helper()
	if len(got.Readings) != len(want.Readings) {
		t.Fatalf("got %d readings, want %d", len(got.Readings), len(want.Readings))
	}
	for key, w := range want.Readings {
		g, ok := got.Readings[key]
		if !ok {
			t.Errorf("reading %s missing", key)
			continue
		}
		if g.Device != w.Device || g.Field != w.Field || g.Error != w.Error {
			t.Errorf("reading %s = %+v, want %+v", key, g, w)
		}
		if !g.At.Equal(w.At) {
			t.Errorf("reading %s At = %v, want %v", key, g.At, w.At)
		}
		gv, wv := g.Value, w.Value
		if gv.Type != wv.Type || gv.Uint != wv.Uint || gv.Float != wv.Float || gv.Bool != wv.Bool || !gv.Time.Equal(wv.Time) {
			t.Errorf("reading %s Value = %+v, want %+v", key, gv, wv)
		}
	}
}

func TestMemoryStorage(t *testing.T) {
	ms := NewMemoryStorage()
	if err := ms.Save(sampleSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s, err := ms.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(s.Readings) != 0 {
		t.Errorf("MemoryStorage kept %d readings", len(s.Readings))
	}
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.cbor")

	fs := NewFileStorage(path)
	s, err := fs.Load()
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if len(s.Readings) != 0 {
		t.Fatalf("fresh snapshot has %d readings", len(s.Readings))
	}

	want := sampleSnapshot()
	if err := fs.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	fs.Close()

	got, err := NewFileStorage(path).Load()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	assertSnapshot(t, got, want)

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the snapshot", len(entries))
	}
}

func TestFileStorageCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.cbor")
	if err := os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStorage(path).Load(); err == nil {
		t.Fatal("Load accepted a corrupt snapshot")
	}
}

func TestMmapStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.mmap")

	ms := NewMmapStorage(path)
	s, err := ms.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(s.Readings) != 0 {
		t.Fatalf("fresh snapshot has %d readings", len(s.Readings))
	}

	want := sampleSnapshot()
	if err := ms.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := ms.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != MmapSize {
		t.Errorf("file size = %d, want %d", fi.Size(), MmapSize)
	}

	ms = NewMmapStorage(path)
	defer ms.Close()
	got, err := ms.Load()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	assertSnapshot(t, got, want)
}

func TestMmapStorageCorruptLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.mmap")
	buf := make([]byte, MmapSize)
	binary.LittleEndian.PutUint32(buf, MmapSize)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatal(err)
	}

	ms := NewMmapStorage(path)
	defer ms.Close()
	if _, err := ms.Load(); err == nil {
		t.Fatal("Load accepted a length beyond the region")
	}
}

func TestMmapStorageTooLarge(t *testing.T) {
	ms := NewMmapStorage(filepath.Join(t.TempDir(), "readings.mmap"))
	defer ms.Close()

	s := NewSnapshot()
	long := make([]byte, MmapSize)
	for i := range long {
		long[i] = 'x'
	}
	s.Readings["big/field"] = Reading{Device: "big", Field: "field", Error: string(long), At: readAt}
	if err := ms.Save(s); err == nil {
		t.Fatal("Save accepted a snapshot larger than the region")
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		cfg  config.StorageConfig
		want Storage
	}{
		{config.StorageConfig{}, &MemoryStorage{}},
		{config.StorageConfig{Type: "memory"}, &MemoryStorage{}},
		{config.StorageConfig{Type: "file", Path: filepath.Join(dir, "a")}, &FileStorage{}},
		{config.StorageConfig{Type: "mmap", Path: filepath.Join(dir, "b")}, &MmapStorage{}},
	}
	for _, tt := range tests {
		got, err := New(tt.cfg)
		if err != nil {
			t.Fatalf("New(%+v) failed: %v", tt.cfg, err)
		}
		if reflect.TypeOf(got) != reflect.TypeOf(tt.want) {
			t.Errorf("New(%+v) = %T, want %T", tt.cfg, got, tt.want)
		}
	}
	if _, err := New(config.StorageConfig{Type: "sql"}); err == nil {
		t.Error("New accepted an unknown type")
	}
}

type failingStorage struct {
	MemoryStorage
}

var errDiskFull = errors.New("disk full")

func (*failingStorage) Save(*Snapshot) error { return errDiskFull }

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.cbor")
	st, err := Open(NewFileStorage(path))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for _, r := range sampleSnapshot().Readings {
		if err := st.Record(r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	r, ok := st.Latest("kitchen", "current_water_consumption_ch1")
	if !ok || !r.Available() || r.Value.Uint != 12345 {
		t.Errorf("Latest = %+v, %v", r, ok)
	}
	r, ok = st.Latest("bath", "device_temperature")
	if !ok || r.Available() {
		t.Errorf("failed reading = %+v, %v; want unavailable", r, ok)
	}
	if _, ok := st.Latest("bath", "system_time"); ok {
		t.Error("Latest found a reading never recorded")
	}

	all := st.All()
	if len(all) != 5 {
		t.Fatalf("All returned %d readings, want 5", len(all))
	}
	if all[0].Device != "bath" || all[1].Field != "battery_voltage" || all[4].Field != "system_time" {
		t.Errorf("All order = %v", all)
	}
	if got := st.Device("kitchen"); len(got) != 4 {
		t.Errorf("Device(kitchen) returned %d readings, want 4", len(got))
	}

	// Newer reading replaces the older one.
	if err := st.Record(Reading{Device: "kitchen", Field: "current_water_consumption_ch1", Value: device.Value{Type: device.TypeUint, Uint: 12400}, At: readAt.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	reopened, err := Open(NewFileStorage(path))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	r, _ = reopened.Latest("kitchen", "current_water_consumption_ch1")
	if r.Value.Uint != 12400 {
		t.Errorf("reopened value = %d, want 12400", r.Value.Uint)
	}
}

func TestStoreSaveError(t *testing.T) {
	st, err := Open(&failingStorage{})
	if err != nil {
		t.Fatal(err)
	}
	err = st.Record(Reading{Device: "d", Field: "f", At: readAt})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Record error = %v, want %v", err, errDiskFull)
	}
	if _, ok := st.Latest("d", "f"); !ok {
		t.Error("reading dropped after a failed save")
	}
}
