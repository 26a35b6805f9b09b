// SPDX-License-Identifier: MIT
//
// Copyright © 2017 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package gpiomem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/ltc241x/spi"
	"github.com/warthog618/ltc241x/spi/bitbash"
)

func fakeMem() (*Mem, []uint32) {
	regs := make([]uint32, memLength/4)
	return newMem(regs), regs
}

func pinMode(regs []uint32, pin int) mode {
	return mode(regs[pin/10] >> (uint(pin%10) * 3) & modeMask)
}

func TestOutput(t *testing.T) {
	m, regs := fakeMem()
	// other pins in the fsel register are left untouched
	regs[1] = 0x3fffffff
	l, err := m.Output(17, 1)
	require.Nil(t, err)
	assert.Equal(t, 17, l.Pin())
	assert.Equal(t, modeOutput, pinMode(regs, 17))
	assert.Equal(t, uint32(0x3fffffff&^(7<<21)|1<<21), regs[1])
	assert.Equal(t, uint32(1<<17), regs[7])

	assert.Nil(t, l.SetValue(0))
	assert.Equal(t, uint32(1<<17), regs[10])

	regs[7] = 0
	assert.Nil(t, l.SetValue(5))
	assert.Equal(t, uint32(1<<17), regs[7])
}

func TestInput(t *testing.T) {
	m, regs := fakeMem()
	regs[0] = 0x3fffffff
	l, err := m.Input(9)
	require.Nil(t, err)
	assert.Equal(t, modeInput, pinMode(regs, 9))
	assert.Equal(t, uint32(0x3fffffff&^(7<<27)), regs[0])

	v, err := l.Value()
	assert.Nil(t, err)
	assert.Equal(t, 0, v)

	regs[13] = 1 << 9
	v, err = l.Value()
	assert.Nil(t, err)
	assert.Equal(t, 1, v)

	regs[13] = ^uint32(1 << 9)
	v, err = l.Value()
	assert.Nil(t, err)
	assert.Equal(t, 0, v)
}

func TestInvalidPin(t *testing.T) {
	m, _ := fakeMem()
	_, err := m.Input(-1)
	assert.Equal(t, ErrInvalidPin{-1}, err)
	_, err = m.Output(MaxPin, 0)
	assert.Equal(t, ErrInvalidPin{MaxPin}, err)
	assert.Equal(t, "invalid pin 28", err.Error())
}

func TestLineClose(t *testing.T) {
	m, regs := fakeMem()
	l, err := m.Output(4, 0)
	require.Nil(t, err)
	assert.Equal(t, modeOutput, pinMode(regs, 4))

	assert.Nil(t, l.Close())
	assert.Equal(t, modeInput, pinMode(regs, 4))
	assert.Equal(t, ErrClosed, l.Close())
	assert.Equal(t, ErrClosed, l.SetValue(1))
	_, err = l.Value()
	assert.Equal(t, ErrClosed, err)
}

func TestMemClose(t *testing.T) {
	m, _ := fakeMem()
	l, err := m.Output(4, 0)
	require.Nil(t, err)
	assert.Nil(t, m.Close())
	assert.Equal(t, ErrClosed, m.Close())
	_, err = m.Input(5)
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, l.SetValue(1))
	_, err = l.Value()
	assert.Equal(t, ErrClosed, err)
	// closing lines after the mapping is harmless
	assert.Nil(t, l.Close())
}

func TestOpenMissing(t *testing.T) {
	dev := Device
	defer func() { Device = dev }()
	Device = filepath.Join(t.TempDir(), "nonexistent")
	m, err := Open()
	assert.NotNil(t, err)
	assert.Nil(t, m)

	_, err = Opener(bitbash.Pins{Sclk: 11, Ssz: 8, Mosi: 10, Miso: 9})(spi.DefaultConfig())
	assert.NotNil(t, err)
}

func TestTransport(t *testing.T) {
	m, regs := fakeMem()
	cfg := spi.DefaultConfig()
	cfg.Mode = spi.Mode3
	pins := bitbash.Pins{Sclk: 11, Ssz: 8, Mosi: 10, Miso: 9}
	tr, err := newTransport(m, pins, cfg)
	require.Nil(t, err)
	assert.Equal(t, modeOutput, pinMode(regs, 11))
	assert.Equal(t, modeOutput, pinMode(regs, 8))
	assert.Equal(t, modeOutput, pinMode(regs, 10))
	assert.Equal(t, modeInput, pinMode(regs, 9))
	// the set and clear registers hold the most recent write only, so
	// sclk, idle high in mode 3, is the last pin set and mosi the last cleared
	assert.Equal(t, uint32(1<<11), regs[7])
	assert.Equal(t, uint32(1<<10), regs[10])

	// miso held low reads zeroes
	rx := make([]byte, 2)
	assert.Nil(t, tr.Transfer([]byte{0xa5, 0x5a}, rx))
	assert.Equal(t, []byte{0, 0}, rx)

	assert.Nil(t, tr.Close())
	for _, pin := range []int{8, 9, 10, 11} {
		assert.Equal(t, modeInput, pinMode(regs, pin))
	}
	_, err = m.Input(9)
	assert.Equal(t, ErrClosed, err)
}

func TestTransportIdleLevels(t *testing.T) {
	m, regs := fakeMem()
	pins := bitbash.Pins{Sclk: 11, Ssz: 8, Mosi: 10, Miso: 9}
	// in mode 0 only ssz idles high, so it is the only pin set
	tr, err := newTransport(m, pins, spi.DefaultConfig())
	require.Nil(t, err)
	assert.Equal(t, uint32(1<<8), regs[7])
	assert.Equal(t, uint32(1<<10), regs[10])
	assert.Nil(t, tr.Close())
}

func TestOutputLevels(t *testing.T) {
	m, regs := fakeMem()
	_, err := m.Output(8, 1)
	require.Nil(t, err)
	assert.Equal(t, uint32(1<<8), regs[7])
	_, err = m.Output(11, 1)
	require.Nil(t, err)
	assert.Equal(t, uint32(1<<11), regs[7])
	_, err = m.Output(10, 0)
	require.Nil(t, err)
	assert.Equal(t, uint32(1<<10), regs[10])
}

func TestTransportInvalidPin(t *testing.T) {
	m, regs := fakeMem()
	pins := bitbash.Pins{Sclk: 11, Ssz: 8, Mosi: 10, Miso: 40}
	_, err := newTransport(m, pins, spi.DefaultConfig())
	assert.Equal(t, ErrInvalidPin{40}, err)
	// partially configured pins are released
	for _, pin := range []int{8, 10, 11} {
		assert.Equal(t, modeInput, pinMode(regs, pin))
	}
	assert.Equal(t, ErrClosed, m.Close())
}
