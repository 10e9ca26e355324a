// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pulsar

import "errors"

// Error kinds. Lower layers wrap these with context; callers match them with
// errors.Is.
var (
	ErrEncoding = errors.New("pulsar: encoding error")
	ErrDecoding = errors.New("pulsar: decoding error")
	ErrProtocol = errors.New("pulsar: protocol error")

	ErrFrameTooShort       = errors.New("pulsar: frame is too short")
	ErrLengthMismatch      = errors.New("pulsar: unexpected end of frame")
	ErrLengthFieldMismatch = errors.New("pulsar: unexpected frame length")
	ErrChecksumMismatch    = errors.New("pulsar: crc mismatch")
	ErrAddressMismatch     = errors.New("pulsar: address mismatch")
	ErrSequenceMismatch    = errors.New("pulsar: request id mismatch")
)

// IsFrameError reports whether err is one of the response validation kinds.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrFrameTooShort) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrLengthFieldMismatch) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrAddressMismatch) ||
		errors.Is(err, ErrSequenceMismatch)
}
