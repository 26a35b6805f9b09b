// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package bitbash_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/ltc241x/spi"
	"github.com/warthog618/ltc241x/spi/bitbash"
)

type fakeLine struct {
	value    int
	src      *fakeLine
	edges    int
	closed   bool
	closeErr error
	setErr   error
	history  []int
}

func (l *fakeLine) SetValue(v int) error {
	if l.setErr != nil {
		return l.setErr
	}
	if v != l.value {
		l.edges++
	}
	l.value = v
	l.history = append(l.history, v)
	return nil
}

func (l *fakeLine) Value() (int, error) {
	if l.src != nil {
		return l.src.value, nil
	}
	return l.value, nil
}

func (l *fakeLine) Close() error {
	l.closed = true
	return l.closeErr
}

type bus struct {
	sclk, ssz, mosi, miso *fakeLine
}

// newLoopback returns lines with miso tied to mosi.
func newLoopback() bus {
	mosi := &fakeLine{}
	return bus{
		sclk: &fakeLine{},
		ssz:  &fakeLine{value: 1},
		mosi: mosi,
		miso: &fakeLine{src: mosi},
	}
}

func (b bus) spi(options ...bitbash.Option) *bitbash.SPI {
	options = append([]bitbash.Option{bitbash.WithTclk(time.Nanosecond)}, options...)
	return bitbash.NewFromLines(b.sclk, b.ssz, b.mosi, b.miso, options...)
}

func TestTransferLoopback(t *testing.T) {
	patterns := []struct {
		name    string
		cpol    int
		options []bitbash.Option
	}{
		{"mode0", 0, nil},
		{"mode1", 0, []bitbash.Option{bitbash.WithCPHA(1)}},
		{"mode2", 1, []bitbash.Option{bitbash.WithCPOL(1)}},
		{"mode3", 1, []bitbash.Option{bitbash.WithCPOL(1), bitbash.WithCPHA(1)}},
		{"lsb", 0, []bitbash.Option{bitbash.WithLSBFirst()}},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			b := newLoopback()
			b.sclk.value = p.cpol
			s := b.spi(p.options...)
			tx := []byte{0xb0, 0x5a, 0x00, 0xff}
			rx := make([]byte, len(tx))
			require.Nil(t, s.Transfer(tx, rx))
			assert.Equal(t, tx, rx)
			// two clock edges per bit
			assert.Equal(t, 2*8*len(tx), b.sclk.edges)
			// selected then released
			assert.Equal(t, []int{0, 1}, b.ssz.history)
		}
		t.Run(p.name, tf)
	}
}

func TestTransferMSBFirst(t *testing.T) {
	b := newLoopback()
	s := b.spi()
	rx := make([]byte, 1)
	require.Nil(t, s.Transfer([]byte{0xa0}, rx))
	assert.Equal(t, []int{1, 0, 1, 0, 0, 0, 0, 0}, b.mosi.history)
}

func TestTransferLengthMismatch(t *testing.T) {
	b := newLoopback()
	s := b.spi()
	err := s.Transfer(make([]byte, 4), make([]byte, 3))
	assert.Equal(t, spi.ErrorLengthMismatch{Tx: 4, Rx: 3}, err)
	assert.Empty(t, b.ssz.history)
}

func TestTransferLineError(t *testing.T) {
	b := newLoopback()
	lineErr := errors.New("line gone")
	b.mosi.setErr = lineErr
	s := b.spi()
	err := s.Transfer(make([]byte, 4), make([]byte, 4))
	assert.Equal(t, lineErr, err)
	// device released despite the error
	assert.Equal(t, 1, b.ssz.value)
}

func TestClose(t *testing.T) {
	b := newLoopback()
	closeErr := errors.New("close failed")
	b.miso.closeErr = closeErr
	s := b.spi()
	err := s.Close()
	assert.Equal(t, closeErr, err)
	assert.True(t, b.sclk.closed)
	assert.True(t, b.ssz.closed)
	assert.True(t, b.mosi.closed)
	assert.True(t, b.miso.closed)

	// closed
	err = s.Transfer(make([]byte, 4), make([]byte, 4))
	assert.Equal(t, bitbash.ErrClosed, err)
	assert.Nil(t, s.Close())
}

func TestWithConfig(t *testing.T) {
	cfg := spi.DefaultConfig()
	cfg.SpeedHz = 62500
	s := bitbash.NewFromLines(nil, nil, nil, nil, bitbash.WithConfig(cfg))
	assert.Equal(t, 8*time.Microsecond, s.Tclk)

	s = bitbash.NewFromLines(nil, nil, nil, nil)
	assert.Equal(t, 500*time.Nanosecond, s.Tclk)
}
