// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package spi defines the transport used to exchange frames with SPI devices.
//
// Concrete transports live in the sub-packages:
//  - spidev drives the Linux spidev character devices directly.
//  - periph uses the periph.io host drivers.
//  - bitbash clocks the bus out on GPIO lines.
package spi

import "fmt"

// Mode represents the SPI mode number where clock polarity (CPOL)
// is the high order bit and clock phase (CPHA) is the low order bit.
type Mode uint8

const (
	Mode0 Mode = iota
	Mode1
	Mode2
	Mode3
)

// CPOL returns the clock polarity of the mode.
func (m Mode) CPOL() int {
	return int(m>>1) & 0x01
}

// CPHA returns the clock phase of the mode.
func (m Mode) CPHA() int {
	return int(m) & 0x01
}

// Config describes how a transport is to be configured when it is opened.
type Config struct {
	// The device identifier, e.g. "/dev/spidev1.0".
	Device string
	Mode   Mode
	// LSBFirst selects the bit order on the wire, false being MSB first.
	LSBFirst    bool
	BitsPerWord uint8
	// FrameLen is the number of words exchanged in each transfer.
	FrameLen int
	SpeedHz  uint32
}

// DefaultConfig returns the configuration used unless overridden.
func DefaultConfig() Config {
	return Config{
		Device:      "/dev/spidev1.0",
		Mode:        Mode0,
		LSBFirst:    false,
		BitsPerWord: 8,
		FrameLen:    1,
		SpeedHz:     10000000,
	}
}

func (c Config) String() string {
	order := "MSB"
	if c.LSBFirst {
		order = "LSB"
	}
	return fmt.Sprintf("%s: mode %d, %d Hz, %s first, %d bits per word, %d words per frame",
		c.Device, c.Mode, c.SpeedHz, order, c.BitsPerWord, c.FrameLen)
}

// Transport performs blocking full-duplex exchanges with a device.
type Transport interface {
	// Transfer clocks out tx while clocking in rx.
	//
	// The two buffers must be the same length.
	Transfer(tx, rx []byte) error

	// Close releases the resources held by the transport.
	Close() error
}

// Opener opens a Transport configured as described by the Config.
type Opener func(Config) (Transport, error)

// ErrorLengthMismatch indicates the transmit and receive buffers passed to
// Transfer differ in length.
type ErrorLengthMismatch struct {
	Tx int
	Rx int
}

func (e ErrorLengthMismatch) Error() string {
	return fmt.Sprintf("buffer length mismatch: tx %d, rx %d", e.Tx, e.Rx)
}

// CheckBuffers returns an error if tx and rx cannot be exchanged.
func CheckBuffers(tx, rx []byte) error {
	if len(tx) != len(rx) {
		return ErrorLengthMismatch{len(tx), len(rx)}
	}
	return nil
}
