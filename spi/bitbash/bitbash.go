// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package bitbash provides an SPI transport bit bashed on GPIO lines.
//
// It is not related to the SPI device drivers provided by Linux, so can be
// used on any four GPIO lines, at the cost of a slow and jittery clock.
// The LTC241x clocks of tens of kHz are well within its reach.
package bitbash

import (
	"errors"
	"time"

	"github.com/warthog618/gpiod"
	"github.com/warthog618/ltc241x/spi"
	"go.uber.org/multierr"
)

// Line is a single GPIO line.
//
// It is satisfied by *gpiod.Line.
type Line interface {
	SetValue(value int) error
	Value() (int, error)
	Close() error
}

// Pins identifies the GPIO line offsets used for the bus.
type Pins struct {
	Sclk int
	Ssz  int
	Mosi int
	Miso int
}

// SPI represents a device connected to an SPI bus using 4 GPIO lines.
type SPI struct {
	// time between clock edges (i.e. half the cycle time)
	Tclk time.Duration
	Sclk Line
	Ssz  Line
	Mosi Line
	Miso Line
	cpol int
	cpha int
	lsb  bool
}

// Open requests the lines from the named GPIO chip and returns an SPI
// clocked as described by the config.
func Open(chip string, pins Pins, cfg spi.Config) (*SPI, error) {
	c, err := gpiod.NewChip(chip, gpiod.WithConsumer("ltc241x"))
	if err != nil {
		return nil, err
	}
	// requested lines remain valid after the chip is closed
	defer c.Close()
	return New(c, pins, WithConfig(cfg))
}

// New requests the lines from the chip and creates an SPI.
func New(c *gpiod.Chip, pins Pins, options ...Option) (s *SPI, err error) {
	s = &SPI{}
	for _, option := range options {
		option(s)
	}
	defer func() {
		if err != nil {
			s.Close()
			s = nil
		}
	}()
	// hold SPI reset until needed...
	var l *gpiod.Line
	if l, err = c.RequestLine(pins.Ssz, gpiod.AsOutput(1)); err != nil {
		return
	}
	s.Ssz = l
	if l, err = c.RequestLine(pins.Sclk, gpiod.AsOutput(s.cpol)); err != nil {
		return
	}
	s.Sclk = l
	if l, err = c.RequestLine(pins.Mosi, gpiod.AsOutput(0)); err != nil {
		return
	}
	s.Mosi = l
	if l, err = c.RequestLine(pins.Miso, gpiod.AsInput); err != nil {
		return
	}
	s.Miso = l
	s.setDefaults()
	return
}

// NewFromLines creates an SPI from lines that are already configured.
//
// The Ssz, Sclk and Mosi lines must be outputs and Miso an input.
func NewFromLines(sclk, ssz, mosi, miso Line, options ...Option) *SPI {
	s := &SPI{Sclk: sclk, Ssz: ssz, Mosi: mosi, Miso: miso}
	for _, option := range options {
		option(s)
	}
	s.setDefaults()
	return s
}

// Opener returns an spi.Opener that opens the pins on the named chip.
func Opener(chip string, pins Pins) spi.Opener {
	return func(cfg spi.Config) (spi.Transport, error) {
		s, err := Open(chip, pins, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (s *SPI) setDefaults() {
	if s.Tclk == 0 {
		// default to 1MHz full cycle.
		s.Tclk = 500 * time.Nanosecond
	}
}

// Close releases the lines used by the SPI.
func (s *SPI) Close() error {
	var err error
	for _, l := range []*Line{&s.Sclk, &s.Mosi, &s.Miso, &s.Ssz} {
		if *l != nil {
			err = multierr.Append(err, (*l).Close())
			*l = nil
		}
	}
	return err
}

// ErrClosed indicates the SPI is closed.
var ErrClosed = errors.New("closed")

// Transfer selects the device and clocks out tx while clocking in rx.
func (s *SPI) Transfer(tx, rx []byte) (err error) {
	if s.Ssz == nil {
		return ErrClosed
	}
	if err = spi.CheckBuffers(tx, rx); err != nil {
		return err
	}
	if err = s.Sclk.SetValue(s.cpol); err != nil {
		return err
	}
	if err = s.Ssz.SetValue(0); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Ssz.SetValue(1))
	}()
	time.Sleep(s.Tclk)
	for i, b := range tx {
		if rx[i], err = s.transferByte(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *SPI) transferByte(out byte) (byte, error) {
	var in byte
	for i := 0; i < 8; i++ {
		shift := uint(7 - i)
		if s.lsb {
			shift = uint(i)
		}
		v, err := s.clockBit(int(out>>shift) & 0x01)
		if err != nil {
			return 0, err
		}
		in |= byte(v) << shift
	}
	return in, nil
}

// clockBit clocks out a data bit on Mosi and clocks in a data bit from Miso.
//
// Starts and ends with the clock at its idle level.
func (s *SPI) clockBit(v int) (int, error) {
	idle := s.cpol
	active := idle ^ 0x01
	if s.cpha == 1 {
		// device reads on the trailing edge
		if err := s.Sclk.SetValue(active); err != nil {
			return 0, err
		}
		if err := s.Mosi.SetValue(v); err != nil {
			return 0, err
		}
		time.Sleep(s.Tclk)
		if err := s.Sclk.SetValue(idle); err != nil {
			return 0, err
		}
		in, err := s.Miso.Value()
		time.Sleep(s.Tclk)
		return in, err
	}
	// device reads on the leading edge
	if err := s.Mosi.SetValue(v); err != nil {
		return 0, err
	}
	time.Sleep(s.Tclk)
	if err := s.Sclk.SetValue(active); err != nil {
		return 0, err
	}
	in, err := s.Miso.Value()
	if err != nil {
		return 0, err
	}
	time.Sleep(s.Tclk)
	return in, s.Sclk.SetValue(idle)
}

// Option specifies a construction option for the SPI.
type Option func(*SPI)

// WithCPOL sets the clock polarity for the SPI.
func WithCPOL(cpol int) Option {
	return func(s *SPI) {
		s.cpol = cpol & 0x01
	}
}

// WithCPHA sets the clock phase for the SPI.
func WithCPHA(cpha int) Option {
	return func(s *SPI) {
		s.cpha = cpha & 0x01
	}
}

// WithLSBFirst clocks the bits of each byte out and in LSB first.
func WithLSBFirst() Option {
	return func(s *SPI) {
		s.lsb = true
	}
}

// WithTclk sets the clock period for the SPI.
//
// Note that this is the half-cycle period.
func WithTclk(tclk time.Duration) Option {
	return func(s *SPI) {
		s.Tclk = tclk
	}
}

// WithConfig applies the mode, bit order and clock speed of the config.
func WithConfig(cfg spi.Config) Option {
	return func(s *SPI) {
		s.cpol = cfg.Mode.CPOL()
		s.cpha = cfg.Mode.CPHA()
		s.lsb = cfg.LSBFirst
		if cfg.SpeedHz != 0 {
			s.Tclk = time.Second / time.Duration(2*cfg.SpeedHz)
		}
	}
}
