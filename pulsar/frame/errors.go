// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import (
	"errors"
	"fmt"
)

// ErrRequestTimedOut is returned by ReadFrame when the deadline passes before
// the frame is complete.
var ErrRequestTimedOut = errors.New("pulsar: request timed out")

// MismatchError reports a response field that disagrees with the request.
// It unwraps to one of the pulsar.Err* validation kinds.
type MismatchError struct {
	Kind     error
	Expected uint64
	Actual   uint64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: expected %d, got %d", e.Kind, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error {
	return e.Kind
}

func mismatch(kind error, expected, actual uint64) error {
	return &MismatchError{Kind: kind, Expected: expected, Actual: actual}
}
