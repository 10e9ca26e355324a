// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator implements the meter side of the Pulsar protocol on top
// of an in-memory state, for bench testing without hardware.
package simulator

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
)

// Channels is the number of counter channels of a simulated meter.
const Channels = 4

// paramSize is the reply payload size of a parameter read.
const paramSize = 8

// Meter holds the state of one simulated water meter.
type Meter struct {
	address uint32

	mu          sync.RWMutex
	counters    [Channels]uint32
	clockOffset time.Duration
	params      map[uint16][paramSize]byte
	silent      map[byte]bool

	now func() time.Time
}

// NewMeter creates a meter at address with a full battery and room
// temperature.
func NewMeter(address uint32) *Meter {
	m := &Meter{
		address: address,
		params:  make(map[uint16][paramSize]byte),
		silent:  make(map[byte]bool),
		now:     time.Now,
	}
	m.SetBatteryVoltage(3.6)
	m.SetTemperature(22.5)
	return m
}

// Address returns the meter address.
func (m *Meter) Address() uint32 { return m.address }

// SetVolume sets the counter of channel ch (1-based), in liters.
func (m *Meter) SetVolume(ch int, liters uint32) {
	if ch < 1 || ch > Channels {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[ch-1] = liters
}

// AddVolume advances the counter of channel ch.
func (m *Meter) AddVolume(ch int, liters uint32) {
	if ch < 1 || ch > Channels {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[ch-1] += liters
}

// SetClock sets the meter clock; it keeps running from there.
func (m *Meter) SetClock(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clockOffset = t.Sub(m.now())
}

func (m *Meter) SetBatteryVoltage(v float32) { m.setFloat(pulsar.ParamBatteryVoltage, v) }
func (m *Meter) SetTemperature(v float32)    { m.setFloat(pulsar.ParamTemperature, v) }
func (m *Meter) SetDiagnostics(flags byte)   { m.setByte(pulsar.ParamDiagnostics, flags) }

func (m *Meter) SetDaylightSaving(on bool) {
	var b byte
	if on {
		b = 1
	}
	m.setByte(pulsar.ParamDaylightSaving, b)
}

// Silence makes the meter ignore requests with the given function code.
func (m *Meter) Silence(function byte, silent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silent[function] = silent
}

func (m *Meter) setFloat(code uint16, v float32) {
	var p [paramSize]byte
	binary.LittleEndian.PutUint32(p[:], math.Float32bits(v))
	m.setParam(code, p)
}

func (m *Meter) setByte(code uint16, b byte) {
	var p [paramSize]byte
	p[0] = b
	m.setParam(code, p)
}

func (m *Meter) setParam(code uint16, p [paramSize]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[code] = p
}

// Handle answers requests addressed to this meter. It satisfies
// transport.RequestHandler.
func (m *Meter) Handle(ctx context.Context, req *frame.ApplicationDataUnit) (pulsar.ProtocolDataUnit, bool) {
	if req.Address != m.address {
		return pulsar.ProtocolDataUnit{}, false
	}
	data, ok := m.Process(req.Pdu)
	if !ok {
		return pulsar.ProtocolDataUnit{}, false
	}
	return pulsar.ProtocolDataUnit{FunctionCode: req.Pdu.FunctionCode, Data: data}, true
}

// Process executes one function against the meter state and returns the
// reply payload.
func (m *Meter) Process(req pulsar.ProtocolDataUnit) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.silent[req.FunctionCode] {
		return nil, false
	}
	switch req.FunctionCode {
	case pulsar.FuncCodeReadCurrentValues:
		return m.handleReadCurrentValues(req.Data)
	case pulsar.FuncCodeReadSystemTime:
		return m.handleReadSystemTime(req.Data)
	case pulsar.FuncCodeWriteSystemTime:
		return m.handleWriteSystemTime(req.Data)
	case pulsar.FuncCodeReadParameters:
		return m.handleReadParameters(req.Data)
	default:
		return nil, false
	}
}

// handleReadCurrentValues answers a 4-byte channel mask with one 4-byte
// counter per selected channel, lowest channel first.
func (m *Meter) handleReadCurrentValues(data []byte) ([]byte, bool) {
	if len(data) != 4 {
		return nil, false
	}
	mask := binary.LittleEndian.Uint32(data)
	var resp []byte
	for ch := 0; ch < Channels; ch++ {
		if mask&(1<<ch) != 0 {
			resp = binary.LittleEndian.AppendUint32(resp, m.counters[ch])
		}
	}
	if len(resp) == 0 {
		return nil, false
	}
	return resp, true
}

func (m *Meter) handleReadSystemTime(data []byte) ([]byte, bool) {
	if len(data) != 0 {
		return nil, false
	}
	t := m.now().Add(m.clockOffset).In(time.Local)
	return []byte{
		byte(t.Year() - 2000),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
	}, true
}

// handleWriteSystemTime sets the clock and acknowledges with a single byte.
func (m *Meter) handleWriteSystemTime(data []byte) ([]byte, bool) {
	if len(data) != 6 {
		return nil, false
	}
	t := time.Date(2000+int(data[0]), time.Month(data[1]), int(data[2]), int(data[3]), int(data[4]), int(data[5]), 0, time.Local)
	m.clockOffset = t.Sub(m.now())
	return []byte{0x01}, true
}

func (m *Meter) handleReadParameters(data []byte) ([]byte, bool) {
	if len(data) != 2 {
		return nil, false
	}
	p, ok := m.params[binary.LittleEndian.Uint16(data)]
	if !ok {
		return nil, false
	}
	return p[:], true
}
