// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

// Package spidev provides an SPI transport using the Linux spidev driver.
//
// The device node, e.g. /dev/spidev1.0, is configured with the mode, bit
// order, word size and clock speed from the spi.Config, and each transfer is
// performed as a single SPI_IOC_MESSAGE.
package spidev

import (
	"errors"
	"os"
	"runtime"
	"unsafe"

	"github.com/warthog618/ltc241x/spi"
	"golang.org/x/sys/unix"
)

// Spidev is an open spidev device.
type Spidev struct {
	f   *os.File
	cfg spi.Config
}

// Open opens and configures the spidev device named in the config.
//
// Each setting is written to the device then read back, so Config reflects
// what the driver actually accepted.
func Open(cfg spi.Config) (*Spidev, error) {
	f, err := os.OpenFile(cfg.Device, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	s := &Spidev{f: f, cfg: cfg}
	if err = s.configure(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Opener opens a Spidev as an spi.Transport.
func Opener(cfg spi.Config) (spi.Transport, error) {
	s, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the configuration as accepted by the driver.
func (s *Spidev) Config() spi.Config {
	return s.cfg
}

// Close closes the device.
func (s *Spidev) Close() error {
	if s.f == nil {
		return ErrClosed
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Transfer performs one full-duplex exchange of len(tx) bytes.
func (s *Spidev) Transfer(tx, rx []byte) error {
	if s.f == nil {
		return ErrClosed
	}
	if err := spi.CheckBuffers(tx, rx); err != nil {
		return err
	}
	if len(tx) == 0 {
		return nil
	}
	t := iocTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		len:         uint32(len(tx)),
		speedHz:     s.cfg.SpeedHz,
		bitsPerWord: s.cfg.BitsPerWord,
	}
	err := ioctlPtr(s.f.Fd(), messageIoctl(1), unsafe.Pointer(&t))
	runtime.KeepAlive(tx)
	runtime.KeepAlive(rx)
	return err
}

func (s *Spidev) configure() error {
	fd := s.f.Fd()
	mode := uint8(s.cfg.Mode)
	if err := writeRead8(fd, wrModeIoctl, rdModeIoctl, &mode); err != nil {
		return err
	}
	s.cfg.Mode = spi.Mode(mode & 0x03)
	var lsb uint8
	if s.cfg.LSBFirst {
		lsb = 1
	}
	if err := writeRead8(fd, wrLSBFirstIoctl, rdLSBFirstIoctl, &lsb); err != nil {
		return err
	}
	s.cfg.LSBFirst = lsb != 0
	bpw := s.cfg.BitsPerWord
	if err := writeRead8(fd, wrBitsPerWordIoctl, rdBitsPerWordIoctl, &bpw); err != nil {
		return err
	}
	s.cfg.BitsPerWord = bpw
	speed := s.cfg.SpeedHz
	if err := ioctlPtr(fd, wrMaxSpeedIoctl, unsafe.Pointer(&speed)); err != nil {
		return err
	}
	if err := ioctlPtr(fd, rdMaxSpeedIoctl, unsafe.Pointer(&speed)); err != nil {
		return err
	}
	s.cfg.SpeedHz = speed
	return nil
}

func writeRead8(fd uintptr, wr, rd ioctl, v *uint8) error {
	if err := ioctlPtr(fd, wr, unsafe.Pointer(v)); err != nil {
		return err
	}
	return ioctlPtr(fd, rd, unsafe.Pointer(v))
}

func ioctlPtr(fd uintptr, req ioctl, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL,
		fd,
		uintptr(req),
		uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// iocTransfer mirrors struct spi_ioc_transfer.
type iocTransfer struct {
	txBuf          uint64
	rxBuf          uint64
	len            uint32
	speedHz        uint32
	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNbits        uint8
	rxNbits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

const spiIocMagic = 'k'

var (
	rdModeIoctl        = ior(spiIocMagic, 1, 1)
	wrModeIoctl        = iow(spiIocMagic, 1, 1)
	rdLSBFirstIoctl    = ior(spiIocMagic, 2, 1)
	wrLSBFirstIoctl    = iow(spiIocMagic, 2, 1)
	rdBitsPerWordIoctl = ior(spiIocMagic, 3, 1)
	wrBitsPerWordIoctl = iow(spiIocMagic, 3, 1)
	rdMaxSpeedIoctl    = ior(spiIocMagic, 4, 4)
	wrMaxSpeedIoctl    = iow(spiIocMagic, 4, 4)
)

// messageIoctl returns SPI_IOC_MESSAGE(n).
func messageIoctl(n uintptr) ioctl {
	return iow(spiIocMagic, 0, n*unsafe.Sizeof(iocTransfer{}))
}

// ErrClosed indicates the device is closed.
var ErrClosed = errors.New("closed")
