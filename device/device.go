// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package device maps semantic meter reads onto Pulsar request frames.
//
// Each read builds a frame, hands it to the shared transport, validates the
// reply against the request and decodes the payload. Reads are never
// retried here; retry policy belongs to the caller.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
	"github.com/ffutop/pulsar-reader/transport"
)

// ErrUnsupportedField is returned when a device kind cannot read a field.
var ErrUnsupportedField = errors.New("device: unsupported field")

// Device is one remote meter reachable through a transport that it shares
// with other devices and does not own.
type Device struct {
	name      string
	kind      Kind
	address   uint32
	transport transport.Transport

	requestID uint32 // Atomic counter, the low 16 bits go on the wire
}

// New creates a device of the given kind at address.
func New(t transport.Transport, kind Kind, name string, address uint32) (*Device, error) {
	if _, ok := operations[kind]; !ok {
		return nil, fmt.Errorf("unknown device type %q", kind)
	}
	if address > pulsar.MaxAddress {
		return nil, fmt.Errorf("%w: address %d exceeds %d digits", pulsar.ErrEncoding, address, 2*pulsar.AddressSize)
	}
	if t == nil {
		return nil, fmt.Errorf("device %q has no transport", name)
	}
	return &Device{
		name:      name,
		kind:      kind,
		address:   address,
		transport: t,
	}, nil
}

func (d *Device) Name() string    { return d.name }
func (d *Device) Kind() Kind      { return d.kind }
func (d *Device) Address() uint32 { return d.address }

// Fields returns the fields this device can read, in polling order.
func (d *Device) Fields() []Field {
	return KindFields(d.kind)
}

// nextRequestID returns 1, 2, ... 65535, 0, 1, ...
func (d *Device) nextRequestID() uint16 {
	return uint16(atomic.AddUint32(&d.requestID, 1))
}

// Read reads a single field. Transport failures and a done context are
// reported as pulsar.ErrFrameTooShort wrapping the cause.
func (d *Device) Read(ctx context.Context, field Field) (Value, error) {
	op, ok := operations[d.kind][field]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s on %s", ErrUnsupportedField, field, d.kind)
	}
	payload, err := d.exchange(ctx, op)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", field, err)
	}
	v, err := op.decode(payload)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

// exchange sends one request and returns the validated reply payload.
func (d *Device) exchange(ctx context.Context, op operation) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", pulsar.ErrFrameTooShort, err)
	}
	data, err := op.payload()
	if err != nil {
		return nil, err
	}
	adu := &frame.ApplicationDataUnit{
		Address:   d.address,
		Pdu:       pulsar.ProtocolDataUnit{FunctionCode: op.function, Data: data},
		RequestID: d.nextRequestID(),
	}
	request, err := adu.Encode()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	response, err := d.transport.Send(ctx, request, frame.ResponseSize(op.replySize))
	if err != nil {
		// A failed exchange is reported like a missing reply.
		return nil, fmt.Errorf("%w: %w", pulsar.ErrFrameTooShort, err)
	}
	payload, err := adu.Verify(response, op.replySize)
	if err != nil {
		return nil, err
	}
	slog.Debug("pulsar exchange complete", "device", d.name, "address", d.address,
		"func", pulsar.FunctionName(op.function), "id", adu.RequestID, "elapsed", time.Since(start))
	return payload, nil
}

// ReadCurrentVolume reads the channel 1 water counter, in liters.
func (d *Device) ReadCurrentVolume(ctx context.Context) (uint32, error) {
	v, err := d.Read(ctx, FieldCurrentVolume)
	return uint32(v.Uint), err
}

// ReadSystemTime reads the meter clock.
func (d *Device) ReadSystemTime(ctx context.Context) (time.Time, error) {
	v, err := d.Read(ctx, FieldSystemTime)
	return v.Time, err
}

// ReadBatteryVoltage reads the battery voltage, in volts.
func (d *Device) ReadBatteryVoltage(ctx context.Context) (float64, error) {
	v, err := d.Read(ctx, FieldBatteryVoltage)
	return v.Float, err
}

// ReadTemperature reads the device temperature, in degrees Celsius.
func (d *Device) ReadTemperature(ctx context.Context) (float64, error) {
	v, err := d.Read(ctx, FieldTemperature)
	return v.Float, err
}

// ReadDaylightSaving reads whether the meter switches to daylight saving
// time automatically.
func (d *Device) ReadDaylightSaving(ctx context.Context) (bool, error) {
	v, err := d.Read(ctx, FieldDaylightSaving)
	return v.Bool, err
}

// ReadDiagnostics reads the diagnostic flag byte.
func (d *Device) ReadDiagnostics(ctx context.Context) (byte, error) {
	v, err := d.Read(ctx, FieldDiagnostics)
	return byte(v.Uint), err
}
