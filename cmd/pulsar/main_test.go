// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ffutop/pulsar-reader/internal/simulator"
	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/transport/tcp"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// startMeter serves a single simulated water meter at address 1234 on a
// loopback port. The meter never answers clock reads.
func startMeter(t *testing.T) string {
	t.Helper()
	m := simulator.NewMeter(1234)
	m.Silence(pulsar.FuncCodeReadSystemTime, true)

	s := tcp.NewServer("127.0.0.1:0")
	addr, err := s.Listen()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Start(ctx, m.Handle)
	return addr.String()
}

func writeConfig(t *testing.T, address string) (configPath, dataPath string) {
	t.Helper()
	dir := t.TempDir()
	dataPath = filepath.Join(dir, "readings.cbor")
	configPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
log:
  level: "error"
connection:
  address: "%s"
  timeout: "500ms"
devices:
  kitchen:
    type: "pulsar-m-water"
    serial_id: 1234
storage:
  type: "file"
  path: "%s"
`, address, dataPath)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return configPath, dataPath
}

func TestFrameEncode(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"read parameters", []string{"frame", "1234", "0x0A", "0a00", "--id", "7"}, "000012340a0c0a0007009452"},
		{"read system time", []string{"frame", "12345678", "4"}, "12345678040a01003983"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("frame failed: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("frame = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFrameDecode(t *testing.T) {
	out, err := execute(t, "frame", "--decode", "000012340a1266666640000000000700010")
	if err == nil {
		t.Fatalf("odd-length hex accepted: %s", out)
	}

	out, err = execute(t, "frame", "--decode", "000012340a12666666400000000007000103")
	if err != nil {
		t.Fatalf("frame --decode failed: %v", err)
	}
	for _, want := range []string{"address:  1234", "function: 0x0A (read parameters)", "length:   18", "payload:  6666664000000000", "id:       7"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFrameErrors(t *testing.T) {
	tests := [][]string{
		{"frame", "123456789", "1"},
		{"frame", "1234", "0x100"},
		{"frame", "1234", "1", "zz"},
		{"frame", "1234"},
		{"frame", "--decode", "0000123401"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if _, err := execute(t, args...); err == nil {
				t.Errorf("%v succeeded, want error", args)
			}
		})
	}
}

func TestReadAndLast(t *testing.T) {
	configPath, _ := writeConfig(t, startMeter(t))

	out, err := execute(t, "read", "kitchen", "battery_voltage", "--config", configPath, "--record")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "3.6" {
		t.Errorf("read = %q, want 3.6", got)
	}

	if _, err := execute(t, "read", "kitchen", "system_time", "--config", configPath, "--record"); err == nil {
		t.Error("read of an unanswered field succeeded")
	}

	out, err = execute(t, "last", "kitchen", "--config", configPath)
	if err != nil {
		t.Fatalf("last failed: %v", err)
	}
	if !strings.Contains(out, "battery_voltage") || !strings.Contains(out, "3.6") {
		t.Errorf("last output missing battery reading:\n%s", out)
	}
	if !strings.Contains(out, "system_time") || !strings.Contains(out, "unavailable") {
		t.Errorf("last output missing failed clock reading:\n%s", out)
	}

	out, err = execute(t, "last", "bath", "--config", configPath)
	if err != nil {
		t.Fatalf("last failed: %v", err)
	}
	if strings.TrimSpace(out) != "no readings" {
		t.Errorf("last bath = %q, want no readings", out)
	}
}

func TestReadWithoutRecord(t *testing.T) {
	configPath, _ := writeConfig(t, startMeter(t))

	out, err := execute(t, "read", "kitchen", "device_temperature", "--config", configPath)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "22.5" {
		t.Errorf("read = %q, want 22.5", got)
	}

	out, err = execute(t, "last", "--config", configPath)
	if err != nil {
		t.Fatalf("last failed: %v", err)
	}
	if strings.TrimSpace(out) != "no readings" {
		t.Errorf("read without --record stored a reading:\n%s", out)
	}
}

func TestReadUnknownDevice(t *testing.T) {
	configPath, _ := writeConfig(t, "127.0.0.1:1")
	if _, err := execute(t, "read", "garage", "battery_voltage", "--config", configPath); err == nil {
		t.Error("read of an unknown device succeeded")
	}
}

func TestParseHex(t *testing.T) {
	for _, in := range []string{"0a00", "0A00", "0x0a00", "0a 00", "0a:00"} {
		got, err := parseHex(in)
		if err != nil {
			t.Errorf("parseHex(%q) failed: %v", in, err)
			continue
		}
		if !bytes.Equal(got, []byte{0x0a, 0x00}) {
			t.Errorf("parseHex(%q) = % X", in, got)
		}
	}
}
