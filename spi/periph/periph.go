// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package periph provides an SPI transport using the periph.io host drivers.
//
// This covers the same hardware as spidev on Linux, but also any other SPI
// port periph.io knows how to drive, such as the FTDI USB bridges.
package periph

import (
	"sync"

	"github.com/warthog618/ltc241x/spi"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	initOnce sync.Once
	initErr  error
)

// Port is an SPI port connected to a single device.
type Port struct {
	p pspi.PortCloser
	c pspi.Conn
}

// Open opens the port named by cfg.Device and connects to it.
//
// An empty Device selects the first port registered with periph.io.
func Open(cfg spi.Config) (*Port, error) {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	if initErr != nil {
		return nil, initErr
	}
	p, err := spireg.Open(cfg.Device)
	if err != nil {
		return nil, err
	}
	c, err := p.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, Mode(cfg), int(cfg.BitsPerWord))
	if err != nil {
		p.Close()
		return nil, err
	}
	return &Port{p: p, c: c}, nil
}

// Opener opens a Port as an spi.Transport.
func Opener(cfg spi.Config) (spi.Transport, error) {
	p, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Mode converts the mode and bit order of the config to a periph.io mode.
func Mode(cfg spi.Config) pspi.Mode {
	m := pspi.Mode(cfg.Mode & 0x03)
	if cfg.LSBFirst {
		m |= pspi.LSBFirst
	}
	return m
}

// Transfer performs one full-duplex exchange.
func (p *Port) Transfer(tx, rx []byte) error {
	if err := spi.CheckBuffers(tx, rx); err != nil {
		return err
	}
	return p.c.Tx(tx, rx)
}

// Close closes the port.
func (p *Port) Close() error {
	return p.p.Close()
}
