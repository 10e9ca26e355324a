// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package frame builds Pulsar request frames and validates the responses
// against the request that produced them.
package frame

import (
	"fmt"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/codec"
	"github.com/ffutop/pulsar-reader/pulsar/crc"
)

// Field offsets inside a frame.
const (
	offsetAddress  = 0
	offsetFunction = pulsar.AddressSize
	offsetLength   = offsetFunction + pulsar.FunctionSize
	offsetPayload  = pulsar.HeaderSize
)

// ApplicationDataUnit is one Pulsar frame.
type ApplicationDataUnit struct {
	Address   uint32
	Pdu       pulsar.ProtocolDataUnit
	RequestID uint16
}

// Size returns the encoded frame length.
func (adu *ApplicationDataUnit) Size() int {
	return len(adu.Pdu.Data) + pulsar.ServiceSize
}

// Encode encodes the ADU in a Pulsar frame:
//
//	Address         : 4 bytes, BCD, most significant first
//	Function        : 1 byte
//	Length          : 1 byte, whole frame
//	Data            : 0 up to 245 bytes
//	Request ID      : 2 bytes, little endian
//	CRC             : 2 bytes, little endian
func (adu *ApplicationDataUnit) Encode() (raw []byte, err error) {
	if adu.Pdu.FunctionCode == 0 {
		return nil, fmt.Errorf("%w: invalid function code", pulsar.ErrProtocol)
	}
	length := adu.Size()
	if length > pulsar.MaxFrameSize {
		return nil, fmt.Errorf("%w: frame length %d exceeds %d", pulsar.ErrProtocol, length, pulsar.MaxFrameSize)
	}
	raw = make([]byte, length)

	if err = codec.WriteBCD(raw, uint64(adu.Address), pulsar.AddressSize, offsetAddress, true); err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	raw[offsetFunction] = adu.Pdu.FunctionCode
	raw[offsetLength] = byte(length)
	copy(raw[offsetPayload:], adu.Pdu.Data)

	if err = codec.WriteInt(raw, uint64(adu.RequestID), pulsar.IDSize, length-pulsar.IDSize-pulsar.CRCSize, false); err != nil {
		return nil, err
	}
	checksum := crc.Checksum(raw, length-pulsar.CRCSize, 0)
	if err = codec.WriteInt(raw, uint64(checksum), pulsar.CRCSize, length-pulsar.CRCSize, false); err != nil {
		return nil, err
	}
	return raw, nil
}

// BuildRequest encodes a request frame for the device at address.
func BuildRequest(address uint32, function byte, payload []byte, requestID uint16) ([]byte, error) {
	adu := &ApplicationDataUnit{
		Address:   address,
		Pdu:       pulsar.ProtocolDataUnit{FunctionCode: function, Data: payload},
		RequestID: requestID,
	}
	return adu.Encode()
}

// checkStructure runs the request-independent checks: minimum size, expected
// size, embedded length byte and checksum.
func checkStructure(raw []byte, expectedLength int) error {
	length := len(raw)
	if length < pulsar.ServiceSize {
		return mismatch(pulsar.ErrFrameTooShort, pulsar.ServiceSize, uint64(length))
	}
	if length != expectedLength {
		return mismatch(pulsar.ErrLengthMismatch, uint64(expectedLength), uint64(length))
	}
	if int(raw[offsetLength]) != expectedLength {
		return mismatch(pulsar.ErrLengthFieldMismatch, uint64(expectedLength), uint64(raw[offsetLength]))
	}
	checksum, err := codec.ReadInt(raw, pulsar.CRCSize, length-pulsar.CRCSize, false)
	if err != nil {
		return err
	}
	if calculated := crc.Checksum(raw, length-pulsar.CRCSize, 0); uint64(calculated) != checksum {
		return mismatch(pulsar.ErrChecksumMismatch, uint64(calculated), checksum)
	}
	return nil
}

// Decode parses a frame without knowing the request it answers. The length
// byte and checksum are still enforced.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	if err := checkStructure(raw, len(raw)); err != nil {
		return nil, err
	}
	length := len(raw)
	address, err := codec.ReadBCD(raw, pulsar.AddressSize, offsetAddress, true)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	id, err := codec.ReadInt(raw, pulsar.IDSize, length-pulsar.IDSize-pulsar.CRCSize, false)
	if err != nil {
		return nil, err
	}
	return &ApplicationDataUnit{
		Address: uint32(address),
		Pdu: pulsar.ProtocolDataUnit{
			FunctionCode: raw[offsetFunction],
			Data:         raw[offsetPayload : length-pulsar.IDSize-pulsar.CRCSize],
		},
		RequestID: uint16(id),
	}, nil
}

// Verify validates a response against the request that produced it and
// returns the response payload. Checks run cheapest first and the first
// failure is returned.
func Verify(response []byte, expectedLength int, expectedAddress uint32, expectedID uint16) ([]byte, error) {
	if expectedLength < pulsar.ServiceSize || expectedLength > pulsar.MaxFrameSize {
		return nil, fmt.Errorf("%w: expected length %d outside %d..%d", pulsar.ErrProtocol, expectedLength, pulsar.ServiceSize, pulsar.MaxFrameSize)
	}
	if err := checkStructure(response, expectedLength); err != nil {
		return nil, err
	}
	length := len(response)

	address, err := codec.ReadBCD(response, pulsar.AddressSize, offsetAddress, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pulsar.ErrAddressMismatch, err)
	}
	if address != uint64(expectedAddress) {
		return nil, mismatch(pulsar.ErrAddressMismatch, uint64(expectedAddress), address)
	}

	id, err := codec.ReadInt(response, pulsar.IDSize, length-pulsar.IDSize-pulsar.CRCSize, false)
	if err != nil {
		return nil, err
	}
	if id != uint64(expectedID) {
		return nil, mismatch(pulsar.ErrSequenceMismatch, uint64(expectedID), id)
	}
	return response[offsetPayload : length-pulsar.IDSize-pulsar.CRCSize], nil
}

// Verify validates response against this request. expectedPayload is the
// size of the payload the device is supposed to answer with.
func (adu *ApplicationDataUnit) Verify(response []byte, expectedPayload int) ([]byte, error) {
	return Verify(response, ResponseSize(expectedPayload), adu.Address, adu.RequestID)
}
