// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package ltc241x

import (
	"errors"
	"fmt"
)

var (
	// ErrParity indicates a conversion result failed the even parity check.
	ErrParity = errors.New("parity error")

	// ErrAddressMismatch indicates a conversion result was for a channel
	// other than the one requested.
	ErrAddressMismatch = errors.New("address mismatch")

	// ErrNotImplemented indicates a differential read was requested.
	ErrNotImplemented = errors.New("differential mode not implemented")

	// ErrInvalidChannel indicates the channel is not available on the chip.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrInvalidSampleCount indicates a calibration was requested with no
	// samples per channel.
	ErrInvalidSampleCount = errors.New("invalid sample count")

	// ErrClosed indicates the ADC is closed.
	ErrClosed = errors.New("closed")
)

// TransportError indicates a failure of the underlying transport.
//
// These are never retried.
type TransportError struct {
	// Op is the failed operation, "open" or "transfer".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AcquisitionError indicates every attempt to read a channel returned an
// invalid result.
//
// Err is the failure of the final attempt, ErrParity or ErrAddressMismatch.
type AcquisitionError struct {
	Channel  int
	Attempts int
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("ch%d: %s after %d attempts", e.Channel, e.Err, e.Attempts)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// CalibrationError indicates a calibration run aborted reading a channel.
type CalibrationError struct {
	Channel int
	Err     error
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration of ch%d failed: %s", e.Channel, e.Err)
}

func (e *CalibrationError) Unwrap() error {
	return e.Err
}
