// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package pulsar holds the shared vocabulary of the Pulsar meter protocol:
// function codes, frame geometry and the error kinds reported by the codec,
// frame and device layers.
package pulsar

import "fmt"

// Frame geometry. Every frame carries the same ten service bytes around
// its payload.
const (
	AddressSize  = 4
	FunctionSize = 1
	LengthSize   = 1
	IDSize       = 2
	CRCSize      = 2

	HeaderSize  = AddressSize + FunctionSize + LengthSize
	ServiceSize = HeaderSize + IDSize + CRCSize

	// MaxFrameSize is bounded by the single length byte.
	MaxFrameSize   = 255
	MaxPayloadSize = MaxFrameSize - ServiceSize

	// MaxAddress is the largest address that fits the 4-byte BCD field.
	MaxAddress = 99999999
)

// Function Codes
const (
	FuncCodeReadCurrentValues = 0x01
	FuncCodeReadSystemTime    = 0x04
	FuncCodeWriteSystemTime   = 0x05
	FuncCodeReadArchive       = 0x06
	FuncCodeReadParameters    = 0x0A
	FuncCodeWriteParameters   = 0x0B
)

// Parameter codes for FuncCodeReadParameters.
const (
	ParamDaylightSaving = 0x0001
	ParamDiagnostics    = 0x0006
	ParamBatteryVoltage = 0x000A
	ParamTemperature    = 0x000B
)

// ProtocolDataUnit is the part of a frame that does not depend on the target
// device or the request correlation.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// FunctionName returns a readable name for a function code.
func FunctionName(code byte) string {
	switch code {
	case FuncCodeReadCurrentValues:
		return "read current values"
	case FuncCodeReadSystemTime:
		return "read system time"
	case FuncCodeWriteSystemTime:
		return "write system time"
	case FuncCodeReadArchive:
		return "read archive"
	case FuncCodeReadParameters:
		return "read parameters"
	case FuncCodeWriteParameters:
		return "write parameters"
	default:
		return fmt.Sprintf("function 0x%02X", code)
	}
}
