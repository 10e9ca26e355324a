// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package device

import (
	"strconv"
	"time"
)

// ValueType tells which member of a Value is set.
type ValueType uint8

const (
	TypeUint ValueType = iota + 1
	TypeFloat
	TypeBool
	TypeTime
)

// Value is a decoded field reading.
type Value struct {
	Type  ValueType `cbor:"1,keyasint"`
	Uint  uint64    `cbor:"2,keyasint,omitempty"`
	Float float64   `cbor:"3,keyasint,omitempty"`
	Bool  bool      `cbor:"4,keyasint,omitempty"`
	Time  time.Time `cbor:"5,keyasint,omitempty"`
}

// Any returns the value as its native Go type.
func (v Value) Any() any {
	switch v.Type {
	case TypeUint:
		return v.Uint
	case TypeFloat:
		return v.Float
	case TypeBool:
		return v.Bool
	case TypeTime:
		return v.Time
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Type {
	case TypeUint:
		return strconv.FormatUint(v.Uint, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 32)
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	case TypeTime:
		return v.Time.Format(time.DateTime)
	default:
		return "unavailable"
	}
}
