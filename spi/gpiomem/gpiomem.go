// SPDX-License-Identifier: MIT
//
// Copyright © 2017 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

// Package gpiomem provides GPIO lines on the Raspberry Pi by directly
// accessing the BCM283x registers mapped by /dev/gpiomem.
//
// The lines satisfy bitbash.Line, and toggle considerably faster than lines
// requested through the GPIO character device, so are suitable for bit
// bashing SPI on kernels that lack the GPIO uAPI.
//
// Pins are identified by their BCM GPIO number, not their J8 header position.
//
// See the BCM2835 ARM Peripherals datasheet for details of the registers.
package gpiomem

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/warthog618/ltc241x/spi"
	"github.com/warthog618/ltc241x/spi/bitbash"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Device is the path of the GPIO register block.
var Device = "/dev/gpiomem"

const (
	memLength = 4096

	// pin mode is 3 bits wide
	modeMask uint32 = 7

	// MaxPin is one more than the highest BCM GPIO number on the J8 header.
	MaxPin = 28
)

type mode uint32

const (
	modeInput mode = iota
	modeOutput
)

// Mem is a mapping of the GPIO registers.
type Mem struct {
	// mu covers read/modify/write access to the registers.
	// Individual reads and writes skip the lock as concurrent register
	// writes are atomic.
	mu   sync.Mutex
	regs []uint32
	mem8 []byte
}

// Open maps the GPIO registers from /dev/gpiomem.
func Open() (*Mem, error) {
	f, err := os.OpenFile(Device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	// the mapping remains valid after the file is closed
	defer f.Close()
	mem8, err := unix.Mmap(int(f.Fd()), 0, memLength,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	m := newMem(unsafe.Slice((*uint32)(unsafe.Pointer(&mem8[0])), len(mem8)/4))
	m.mem8 = mem8
	return m, nil
}

func newMem(regs []uint32) *Mem {
	return &Mem{regs: regs}
}

// Close unmaps the registers.
//
// Lines created from the Mem return ErrClosed once it is closed.
func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regs == nil {
		return ErrClosed
	}
	m.regs = nil
	if m.mem8 == nil {
		return nil
	}
	err := unix.Munmap(m.mem8)
	m.mem8 = nil
	return err
}

// Output sets the pin as an output, driven to the value, and returns the
// line controlling it.
func (m *Mem) Output(pin, value int) (*Line, error) {
	l, err := m.newLine(pin)
	if err != nil {
		return nil, err
	}
	// set the level before enabling the driver to avoid glitching
	l.write(value)
	m.setMode(l, modeOutput)
	return l, nil
}

// Input sets the pin as an input and returns the line reading it.
func (m *Mem) Input(pin int) (*Line, error) {
	l, err := m.newLine(pin)
	if err != nil {
		return nil, err
	}
	m.setMode(l, modeInput)
	return l, nil
}

func (m *Mem) newLine(pin int) (*Line, error) {
	if pin < 0 || pin >= MaxPin {
		return nil, ErrInvalidPin{pin}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regs == nil {
		return nil, ErrClosed
	}
	// all the J8 pins are in the first bank
	bank := pin / 32
	return &Line{
		m:        m,
		pin:      pin,
		fsel:     pin / 10,
		mask:     uint32(1) << uint(pin&0x1f),
		setReg:   7 + bank,
		clearReg: 10 + bank,
		levelReg: 13 + bank,
	}, nil
}

func (m *Mem) setMode(l *Line, md mode) {
	shift := uint(l.pin%10) * 3
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regs == nil {
		return
	}
	m.regs[l.fsel] = m.regs[l.fsel]&^(modeMask<<shift) | uint32(md)<<shift
}

// Line is a single GPIO pin.
type Line struct {
	m        *Mem
	pin      int
	fsel     int
	mask     uint32
	setReg   int
	clearReg int
	levelReg int
	closed   bool
}

// Pin returns the BCM GPIO number of the line.
func (l *Line) Pin() int {
	return l.pin
}

// SetValue drives an output line high (non-zero) or low (zero).
func (l *Line) SetValue(value int) error {
	if l.closed || l.m.regs == nil {
		return ErrClosed
	}
	l.write(value)
	return nil
}

func (l *Line) write(value int) {
	if value == 0 {
		l.m.regs[l.clearReg] = l.mask
	} else {
		l.m.regs[l.setReg] = l.mask
	}
}

// Value returns the current level of the line.
func (l *Line) Value() (int, error) {
	if l.closed || l.m.regs == nil {
		return 0, ErrClosed
	}
	if l.m.regs[l.levelReg]&l.mask != 0 {
		return 1, nil
	}
	return 0, nil
}

// Close returns the pin to an input and releases the line.
func (l *Line) Close() error {
	if l.closed {
		return ErrClosed
	}
	l.closed = true
	l.m.setMode(l, modeInput)
	return nil
}

// transport is a bit bashed SPI that owns the register mapping.
type transport struct {
	*bitbash.SPI
	m *Mem
}

func (t transport) Close() error {
	return multierr.Append(t.SPI.Close(), t.m.Close())
}

// Opener returns an spi.Opener that bit bashes SPI on the pins.
func Opener(pins bitbash.Pins) spi.Opener {
	return func(cfg spi.Config) (spi.Transport, error) {
		m, err := Open()
		if err != nil {
			return nil, err
		}
		return newTransport(m, pins, cfg)
	}
}

func newTransport(m *Mem, pins bitbash.Pins, cfg spi.Config) (t spi.Transport, err error) {
	var ll []*Line
	defer func() {
		if err != nil {
			for _, l := range ll {
				l.Close()
			}
			m.Close()
		}
	}()
	ssz, err := m.Output(pins.Ssz, 1)
	if err != nil {
		return nil, err
	}
	ll = append(ll, ssz)
	sclk, err := m.Output(pins.Sclk, cfg.Mode.CPOL())
	if err != nil {
		return nil, err
	}
	ll = append(ll, sclk)
	mosi, err := m.Output(pins.Mosi, 0)
	if err != nil {
		return nil, err
	}
	ll = append(ll, mosi)
	miso, err := m.Input(pins.Miso)
	if err != nil {
		return nil, err
	}
	s := bitbash.NewFromLines(sclk, ssz, mosi, miso, bitbash.WithConfig(cfg))
	return transport{SPI: s, m: m}, nil
}

// ErrClosed indicates the Mem or Line has been closed.
var ErrClosed = errors.New("closed")

// ErrInvalidPin indicates the pin is not a GPIO on the J8 header.
type ErrInvalidPin struct {
	Pin int
}

func (e ErrInvalidPin) Error() string {
	return fmt.Sprintf("invalid pin %d", e.Pin)
}
