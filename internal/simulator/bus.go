// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
)

// Bus routes requests to the simulated meters sharing one line.
type Bus struct {
	mu     sync.RWMutex
	meters map[uint32]*Meter
}

// NewBus creates a bus holding meters.
func NewBus(meters ...*Meter) *Bus {
	b := &Bus{meters: make(map[uint32]*Meter)}
	for _, m := range meters {
		b.meters[m.Address()] = m
	}
	return b
}

// Add attaches m to the bus.
func (b *Bus) Add(m *Meter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.meters[m.Address()]; ok {
		return fmt.Errorf("meter %d already on the bus", m.Address())
	}
	b.meters[m.Address()] = m
	return nil
}

// Meter returns the meter at address.
func (b *Bus) Meter(address uint32) (*Meter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.meters[address]
	return m, ok
}

// Handle satisfies transport.RequestHandler. Requests for an address with no
// meter stay unanswered.
func (b *Bus) Handle(ctx context.Context, req *frame.ApplicationDataUnit) (pulsar.ProtocolDataUnit, bool) {
	m, ok := b.Meter(req.Address)
	if !ok {
		return pulsar.ProtocolDataUnit{}, false
	}
	return m.Handle(ctx, req)
}

// ParseAddresses parses a list of meter addresses (e.g. "1234,5000-5003").
func ParseAddresses(input string) ([]uint32, error) {
	var addrs []uint32
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			// Range
			start, err := parseAddress(lo)
			if err != nil {
				return nil, fmt.Errorf("invalid start of range: %w", err)
			}
			end, err := parseAddress(hi)
			if err != nil {
				return nil, fmt.Errorf("invalid end of range: %w", err)
			}
			if start > end {
				return nil, fmt.Errorf("start of range %d is greater than end %d", start, end)
			}
			if end-start >= 256 {
				return nil, fmt.Errorf("range %s is too large", part)
			}
			for a := start; a <= end; a++ {
				addrs = append(addrs, a)
			}
			continue
		}
		a, err := parseAddress(part)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %w", err)
	}
	if v > pulsar.MaxAddress {
		return 0, fmt.Errorf("address out of range: %d", v)
	}
	return uint32(v), nil
}
