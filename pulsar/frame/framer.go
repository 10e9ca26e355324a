// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import (
	"fmt"
	"io"
	"time"

	"github.com/ffutop/pulsar-reader/pulsar"
)

// ResponseSize returns the total frame length for a payload of the given size.
func ResponseSize(payloadSize int) int {
	return payloadSize + pulsar.ServiceSize
}

// ReadFrame reads up to size bytes from r. Pulsar frames carry no start
// marker, so the caller must know the reply length in advance.
//
// When the deadline passes first, the bytes received so far are returned
// together with ErrRequestTimedOut. Any other read error is returned with
// the partial data.
func ReadFrame(r io.Reader, size int, deadline time.Time) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}
	if size <= 0 || size > pulsar.MaxFrameSize {
		return nil, fmt.Errorf("invalid frame size: %d", size)
	}

	data := make([]byte, size)
	n := 0
	for n < size {
		if time.Now().After(deadline) {
			return data[:n], ErrRequestTimedOut
		}
		m, err := r.Read(data[n:])
		n += m
		if err != nil {
			if n == size {
				break
			}
			return data[:n], err
		}
	}
	return data, nil
}
