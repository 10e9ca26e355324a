package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ffutop/pulsar-reader/device"
)

func benchReading(i int) Reading {
	return Reading{
		Device: "kitchen",
		Field:  "current_water_consumption_ch1",
		Value:  device.Value{Type: device.TypeUint, Uint: uint64(i)},
		At:     time.Now(),
	}
}

// BenchmarkMemoryStorage_Record benchmarks Record on the no-op backend (baseline).
func BenchmarkMemoryStorage_Record(b *testing.B) {
	st, err := Open(NewMemoryStorage())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = st.Record(benchReading(i))
	}
}

// BenchmarkFileStorage_Record benchmarks Record with write-then-rename.
func BenchmarkFileStorage_Record(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.cbor")
	st, err := Open(NewFileStorage(path))
	if err != nil {
		b.Fatalf("Failed to open file storage: %v", err)
	}
	defer st.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := st.Record(benchReading(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMmapStorage_Record benchmarks Record with an msync per save.
func BenchmarkMmapStorage_Record(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.mmap")
	st, err := Open(NewMmapStorage(path))
	if err != nil {
		b.Fatalf("Failed to open mmap storage: %v", err)
	}
	defer st.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := st.Record(benchReading(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMmapStorage_Load benchmarks the Load operation for MmapStorage.
// Note: This involves file open, fstat, and mmap system calls.
func BenchmarkMmapStorage_Load(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_load.mmap")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ms := NewMmapStorage(path)
		if _, err := ms.Load(); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
		ms.Close()
	}
}
