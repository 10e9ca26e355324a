// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
)

// Transport exchanges raw frames with a meter, or with a bus of meters
// sharing one line.
//
// Implementations serialize Send calls: one exchange is in flight at a time
// and concurrent callers wait for it to finish. A reply that does not arrive
// in time is returned short (possibly empty) with a nil error; the frame
// validator turns it into a protocol error. Hard I/O failures are returned
// as errors and the underlying channel is reopened on the next Send.
type Transport interface {
	// Send writes request and waits for a reply of responseSize bytes.
	Send(ctx context.Context, request []byte, responseSize int) ([]byte, error)
	Connect(ctx context.Context) error
	Close() error
}

// RequestHandler answers a decoded request on the meter side. Returning
// false leaves the request unanswered, as a meter does for frames that are
// not addressed to it or that it does not understand.
type RequestHandler func(ctx context.Context, req *frame.ApplicationDataUnit) (pulsar.ProtocolDataUnit, bool)

// IsTimeout reports whether err only means that the reply did not arrive in
// time.
func IsTimeout(err error) bool {
	if errors.Is(err, frame.ErrRequestTimedOut) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
