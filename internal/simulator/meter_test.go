// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"bytes"
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
)

func request(address uint32, function byte, data ...byte) *frame.ApplicationDataUnit {
	return &frame.ApplicationDataUnit{
		Address:   address,
		Pdu:       pulsar.ProtocolDataUnit{FunctionCode: function, Data: data},
		RequestID: 1,
	}
}

func TestMeter_Process(t *testing.T) {
	m := NewMeter(1234)
	m.SetVolume(1, 12345)
	m.SetVolume(3, 7)
	m.SetDaylightSaving(true)
	m.SetDiagnostics(0x04)

	tests := []struct {
		name string
		req  *frame.ApplicationDataUnit
		want []byte
		ok   bool
	}{
		{"Channel1", request(1234, pulsar.FuncCodeReadCurrentValues, 0x01, 0, 0, 0), []byte{0x39, 0x30, 0, 0}, true},
		{"Channels1And3", request(1234, pulsar.FuncCodeReadCurrentValues, 0x05, 0, 0, 0), []byte{0x39, 0x30, 0, 0, 0x07, 0, 0, 0}, true},
		{"NoChannel", request(1234, pulsar.FuncCodeReadCurrentValues, 0, 0, 0, 0), nil, false},
		{"Battery", request(1234, pulsar.FuncCodeReadParameters, 0x0A, 0x00), []byte{0x66, 0x66, 0x66, 0x40, 0, 0, 0, 0}, true},
		{"Temperature", request(1234, pulsar.FuncCodeReadParameters, 0x0B, 0x00), []byte{0x00, 0x00, 0xB4, 0x41, 0, 0, 0, 0}, true},
		{"DaylightSaving", request(1234, pulsar.FuncCodeReadParameters, 0x01, 0x00), []byte{1, 0, 0, 0, 0, 0, 0, 0}, true},
		{"Diagnostics", request(1234, pulsar.FuncCodeReadParameters, 0x06, 0x00), []byte{4, 0, 0, 0, 0, 0, 0, 0}, true},
		{"UnknownParameter", request(1234, pulsar.FuncCodeReadParameters, 0x63, 0x00), nil, false},
		{"OtherMeter", request(5678, pulsar.FuncCodeReadParameters, 0x0A, 0x00), nil, false},
		{"UnknownFunction", request(1234, 0x7F), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, ok := m.Handle(context.Background(), tt.req)
			if ok != tt.ok {
				t.Fatalf("answered = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if resp.FunctionCode != tt.req.Pdu.FunctionCode {
				t.Errorf("function = 0x%02X, want 0x%02X", resp.FunctionCode, tt.req.Pdu.FunctionCode)
			}
			if !bytes.Equal(resp.Data, tt.want) {
				t.Errorf("payload = % X, want % X", resp.Data, tt.want)
			}
		})
	}
}

func TestMeter_Clock(t *testing.T) {
	m := NewMeter(1)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
	m.now = func() time.Time { return base }

	m.SetClock(time.Date(2024, 3, 15, 10, 30, 0, 0, time.Local))
	data, ok := m.Process(pulsar.ProtocolDataUnit{FunctionCode: pulsar.FuncCodeReadSystemTime})
	if !ok || !bytes.Equal(data, []byte{24, 3, 15, 10, 30, 0}) {
		t.Fatalf("clock = % X, %v", data, ok)
	}

	ack, ok := m.Process(pulsar.ProtocolDataUnit{FunctionCode: pulsar.FuncCodeWriteSystemTime, Data: []byte{25, 12, 31, 23, 59, 58}})
	if !ok || !bytes.Equal(ack, []byte{0x01}) {
		t.Fatalf("write ack = % X, %v", ack, ok)
	}
	data, _ = m.Process(pulsar.ProtocolDataUnit{FunctionCode: pulsar.FuncCodeReadSystemTime})
	if !bytes.Equal(data, []byte{25, 12, 31, 23, 59, 58}) {
		t.Errorf("clock after write = % X", data)
	}
}

func TestMeter_Silence(t *testing.T) {
	m := NewMeter(1)
	m.Silence(pulsar.FuncCodeReadSystemTime, true)
	if _, ok := m.Process(pulsar.ProtocolDataUnit{FunctionCode: pulsar.FuncCodeReadSystemTime}); ok {
		t.Fatal("silenced function answered")
	}
	m.Silence(pulsar.FuncCodeReadSystemTime, false)
	if _, ok := m.Process(pulsar.ProtocolDataUnit{FunctionCode: pulsar.FuncCodeReadSystemTime}); !ok {
		t.Fatal("function still silent")
	}
}

func TestBus(t *testing.T) {
	a, b := NewMeter(1), NewMeter(2)
	a.SetVolume(1, 10)
	b.SetVolume(1, 20)
	bus := NewBus(a)
	if err := bus.Add(b); err != nil {
		t.Fatal(err)
	}
	if err := bus.Add(NewMeter(2)); err == nil {
		t.Error("Add accepted a duplicate address")
	}

	resp, ok := bus.Handle(context.Background(), request(2, pulsar.FuncCodeReadCurrentValues, 1, 0, 0, 0))
	if !ok || !bytes.Equal(resp.Data, []byte{20, 0, 0, 0}) {
		t.Errorf("meter 2 = % X, %v", resp.Data, ok)
	}
	if _, ok := bus.Handle(context.Background(), request(3, pulsar.FuncCodeReadCurrentValues, 1, 0, 0, 0)); ok {
		t.Error("absent meter answered")
	}
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses("1234, 5000-5002,99999999")
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{1234, 5000, 5001, 5002, 99999999}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseAddresses = %v, want %v", got, want)
	}

	for _, bad := range []string{"abc", "5-1", "100000000", "1-1000"} {
		if _, err := ParseAddresses(bad); err == nil {
			t.Errorf("ParseAddresses(%q) succeeded", bad)
		}
	}
}
