// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements CRC-16/MODBUS as used by the Pulsar frame trailer.
package crc

const (
	initial    = 0xFFFF
	polynomial = 0xA001 // reflected 0x8005
)

// CRC is a running CRC-16/MODBUS register.
type CRC struct {
	value uint16
}

// Reset sets the register to its initial value.
func (crc *CRC) Reset() *CRC {
	crc.value = initial
	return crc
}

// PushByte feeds a single byte into the register.
func (crc *CRC) PushByte(b byte) *CRC {
	crc.value ^= uint16(b)
	for i := 0; i < 8; i++ {
		if crc.value&0x0001 != 0 {
			crc.value = (crc.value >> 1) ^ polynomial
		} else {
			crc.value >>= 1
		}
	}
	return crc
}

// PushBytes feeds bs into the register in order.
func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.PushByte(b)
	}
	return crc
}

// Value returns the current register value.
func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum computes the CRC of size bytes of buf starting at offset.
// It panics if the range lies outside buf, like a slice expression would.
func Checksum(buf []byte, size, offset int) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(buf[offset : offset+size]).Value()
}
