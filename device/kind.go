// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package device

import (
	"fmt"
	"time"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/codec"
)

// Kind selects the operation table of a device model.
type Kind string

const (
	KindPulsarMWater Kind = "pulsar-m-water"
)

// ParseKind validates a configured device type.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := operations[k]; !ok {
		return "", fmt.Errorf("unknown device type %q", s)
	}
	return k, nil
}

// Kinds returns every supported device kind.
func Kinds() []Kind {
	return []Kind{KindPulsarMWater}
}

// KindFields returns the readable fields of kind in polling order.
func KindFields(kind Kind) []Field {
	return append([]Field(nil), fields[kind]...)
}

// Field names one readable quantity of a device.
type Field string

const (
	FieldCurrentVolume  Field = "current_water_consumption_ch1"
	FieldSystemTime     Field = "system_time"
	FieldTemperature    Field = "device_temperature"
	FieldBatteryVoltage Field = "battery_voltage"
	FieldDaylightSaving Field = "daylight_saving_time"
	FieldDiagnostics    Field = "diagnostics"
)

// operation describes how one field is read: the request to send, the size
// of the expected reply payload and how to decode it.
type operation struct {
	function  byte
	payload   func() ([]byte, error)
	replySize int
	decode    func(payload []byte) (Value, error)
}

// fields lists the readable fields of every kind in polling order.
var fields = map[Kind][]Field{
	KindPulsarMWater: {
		FieldCurrentVolume,
		FieldSystemTime,
		FieldTemperature,
		FieldBatteryVoltage,
		FieldDaylightSaving,
		FieldDiagnostics,
	},
}

var operations = map[Kind]map[Field]operation{
	KindPulsarMWater: {
		FieldCurrentVolume: {
			function:  pulsar.FuncCodeReadCurrentValues,
			payload:   channelMask(1),
			replySize: 4,
			decode:    decodeUint(4),
		},
		FieldSystemTime: {
			function:  pulsar.FuncCodeReadSystemTime,
			payload:   noPayload,
			replySize: 6,
			decode:    decodeClock,
		},
		FieldTemperature: {
			function:  pulsar.FuncCodeReadParameters,
			payload:   paramCode(pulsar.ParamTemperature),
			replySize: 8,
			decode:    decodeFloat(4),
		},
		FieldBatteryVoltage: {
			function:  pulsar.FuncCodeReadParameters,
			payload:   paramCode(pulsar.ParamBatteryVoltage),
			replySize: 8,
			decode:    decodeFloat(4),
		},
		FieldDaylightSaving: {
			function:  pulsar.FuncCodeReadParameters,
			payload:   paramCode(pulsar.ParamDaylightSaving),
			replySize: 8,
			decode:    decodeFlag,
		},
		FieldDiagnostics: {
			function:  pulsar.FuncCodeReadParameters,
			payload:   paramCode(pulsar.ParamDiagnostics),
			replySize: 8,
			decode:    decodeByte,
		},
	},
}

func noPayload() ([]byte, error) {
	return nil, nil
}

// channelMask selects channels with a 4-byte little-endian bit mask.
func channelMask(channels ...uint) func() ([]byte, error) {
	return func() ([]byte, error) {
		var mask uint64
		for _, ch := range channels {
			mask |= 1 << (ch - 1)
		}
		buf := make([]byte, 4)
		if err := codec.WriteInt(buf, mask, 4, 0, false); err != nil {
			return nil, err
		}
		return buf, nil
	}
}

// paramCode selects a parameter with a 2-byte little-endian code.
func paramCode(code uint16) func() ([]byte, error) {
	return func() ([]byte, error) {
		buf := make([]byte, 2)
		if err := codec.WriteInt(buf, uint64(code), 2, 0, false); err != nil {
			return nil, err
		}
		return buf, nil
	}
}

func decodeUint(size int) func([]byte) (Value, error) {
	return func(p []byte) (Value, error) {
		v, err := codec.ReadInt(p, size, 0, false)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: TypeUint, Uint: v}, nil
	}
}

func decodeFloat(size int) func([]byte) (Value, error) {
	return func(p []byte) (Value, error) {
		v, err := codec.ReadFloat(p, size, 0, false)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: TypeFloat, Float: v}, nil
	}
}

func decodeFlag(p []byte) (Value, error) {
	if len(p) < 1 {
		return Value{}, fmt.Errorf("%w: empty parameter", pulsar.ErrDecoding)
	}
	return Value{Type: TypeBool, Bool: p[0] != 0}, nil
}

func decodeByte(p []byte) (Value, error) {
	if len(p) < 1 {
		return Value{}, fmt.Errorf("%w: empty parameter", pulsar.ErrDecoding)
	}
	return Value{Type: TypeUint, Uint: uint64(p[0])}, nil
}

// decodeClock reads the six clock bytes: years since 2000, month, day, hour,
// minute and second. The meter keeps local time.
func decodeClock(p []byte) (Value, error) {
	if len(p) < 6 {
		return Value{}, fmt.Errorf("%w: clock needs 6 bytes, got %d", pulsar.ErrDecoding, len(p))
	}
	year, month, day := 2000+int(p[0]), int(p[1]), int(p[2])
	hour, minute, second := int(p[3]), int(p[4]), int(p[5])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return Value{}, fmt.Errorf("%w: invalid clock % X", pulsar.ErrDecoding, p[:6])
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	if t.Day() != day {
		return Value{}, fmt.Errorf("%w: invalid date %04d-%02d-%02d", pulsar.ErrDecoding, year, month, day)
	}
	return Value{Type: TypeTime, Time: t}, nil
}
