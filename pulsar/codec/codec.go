// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package codec encodes and decodes the fixed-width fields found in Pulsar
// frames: packed BCD numbers, raw integers and IEEE-754 floats.
//
// Every function addresses size bytes of buf starting at offset. With
// bigEndian set the most significant byte comes first.
package codec

import (
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/ffutop/pulsar-reader/pulsar"
)

// MaxSize is the widest field the codec handles.
const MaxSize = 8

// pow10 holds 10^(2*size), the exclusive BCD bound for size bytes.
var pow10 = [MaxSize + 1]uint64{
	1,
	1e2,
	1e4,
	1e6,
	1e8,
	1e10,
	1e12,
	1e14,
	1e16,
}

func checkRange(kind error, buf []byte, size, offset int) error {
	if size < 1 || size > MaxSize {
		return fmt.Errorf("%w: unsupported field size %d", kind, size)
	}
	if offset < 0 || offset+size > len(buf) {
		return fmt.Errorf("%w: field [%d:%d] outside buffer of %d bytes", kind, offset, offset+size, len(buf))
	}
	return nil
}

// index maps the i-th byte counted from the least significant end to its
// position in buf.
func index(i, size, offset int, bigEndian bool) int {
	if bigEndian {
		return offset + size - i - 1
	}
	return offset + i
}

// WriteBCD packs value into size bytes, two decimal digits per byte.
func WriteBCD(buf []byte, value uint64, size, offset int, bigEndian bool) error {
	if err := checkRange(pulsar.ErrEncoding, buf, size, offset); err != nil {
		return err
	}
	if value >= pow10[size] {
		return fmt.Errorf("%w: %d does not fit in %d BCD digits", pulsar.ErrEncoding, value, 2*size)
	}
	for i := 0; i < size; i++ {
		b := byte(value % 10)
		value /= 10
		b |= byte(value%10) << 4
		value /= 10
		buf[index(i, size, offset, bigEndian)] = b
	}
	return nil
}

// WriteInt stores value as a size-byte unsigned integer. Values wider than
// the field are rejected rather than truncated.
func WriteInt(buf []byte, value uint64, size, offset int, bigEndian bool) error {
	if err := checkRange(pulsar.ErrEncoding, buf, size, offset); err != nil {
		return err
	}
	if size < MaxSize && value>>(8*uint(size)) != 0 {
		return fmt.Errorf("%w: %d does not fit in %d bytes", pulsar.ErrEncoding, value, size)
	}
	for i := 0; i < size; i++ {
		buf[index(i, size, offset, bigEndian)] = byte(value)
		value >>= 8
	}
	return nil
}

// ReadBCD decodes a packed BCD number. Every nibble must be a decimal digit.
func ReadBCD(buf []byte, size, offset int, bigEndian bool) (uint64, error) {
	if err := checkRange(pulsar.ErrDecoding, buf, size, offset); err != nil {
		return 0, err
	}
	var res uint64
	for i := size - 1; i >= 0; i-- {
		pos := index(i, size, offset, bigEndian)
		b := buf[pos]
		hi, lo := b>>4, b&0x0F
		if hi > 9 || lo > 9 {
			return 0, fmt.Errorf("%w: invalid BCD byte 0x%02X at offset %d", pulsar.ErrDecoding, b, pos)
		}
		res = res*100 + uint64(hi)*10 + uint64(lo)
	}
	return res, nil
}

// ReadInt decodes a size-byte unsigned integer.
func ReadInt(buf []byte, size, offset int, bigEndian bool) (uint64, error) {
	if err := checkRange(pulsar.ErrDecoding, buf, size, offset); err != nil {
		return 0, err
	}
	var res uint64
	for i := size - 1; i >= 0; i-- {
		res = res<<8 | uint64(buf[index(i, size, offset, bigEndian)])
	}
	return res, nil
}

// ReadFloat decodes an IEEE-754 binary16, binary32 or binary64 value.
func ReadFloat(buf []byte, size, offset int, bigEndian bool) (float64, error) {
	switch size {
	case 2, 4, 8:
	default:
		return 0, fmt.Errorf("%w: unsupported float size %d", pulsar.ErrDecoding, size)
	}
	bits, err := ReadInt(buf, size, offset, bigEndian)
	if err != nil {
		return 0, err
	}
	switch size {
	case 2:
		return float64(float16.Frombits(uint16(bits)).Float32()), nil
	case 4:
		return float64(math.Float32frombits(uint32(bits))), nil
	default:
		return math.Float64frombits(bits), nil
	}
}

// WriteFloat encodes value as an IEEE-754 float of the given size.
func WriteFloat(buf []byte, value float64, size, offset int, bigEndian bool) error {
	var bits uint64
	switch size {
	case 2:
		bits = uint64(float16.Fromfloat32(float32(value)).Bits())
	case 4:
		bits = uint64(math.Float32bits(float32(value)))
	case 8:
		bits = math.Float64bits(value)
	default:
		return fmt.Errorf("%w: unsupported float size %d", pulsar.ErrEncoding, size)
	}
	return WriteInt(buf, bits, size, offset, bigEndian)
}
