// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package spitest provides spi.Transports for testing drivers without
// hardware.
package spitest

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/warthog618/ltc241x"
	"github.com/warthog618/ltc241x/spi"
)

// ErrClosed indicates the transport is closed.
var ErrClosed = errors.New("closed")

// Transport is an spi.Transport that replies with scripted frames.
type Transport struct {
	mu sync.Mutex
	// respond returns the reply to the nth transfer, counting from 0.
	respond  func(n int, tx []byte) ([]byte, error)
	sent     [][]byte
	closed   bool
	closeErr error
}

// New creates a Transport that replies using respond.
func New(respond func(n int, tx []byte) ([]byte, error)) *Transport {
	return &Transport{respond: respond}
}

// Fixed creates a Transport that always replies with the same big-endian word.
func Fixed(word uint32) *Transport {
	return Sequence(word)
}

// Sequence creates a Transport that replies with the words in turn,
// repeating the last once the others are exhausted.
func Sequence(words ...uint32) *Transport {
	return New(func(n int, tx []byte) ([]byte, error) {
		if n >= len(words) {
			n = len(words) - 1
		}
		rx := make([]byte, len(tx))
		binary.BigEndian.PutUint32(rx, words[n])
		return rx, nil
	})
}

// Failing creates a Transport for which every transfer fails with err.
func Failing(err error) *Transport {
	return New(func(int, []byte) ([]byte, error) {
		return nil, err
	})
}

// Opener returns an spi.Opener that returns the transport.
func (t *Transport) Opener() spi.Opener {
	return func(spi.Config) (spi.Transport, error) {
		return t, nil
	}
}

// SetCloseError sets the error returned by Close.
func (t *Transport) SetCloseError(err error) {
	t.mu.Lock()
	t.closeErr = err
	t.mu.Unlock()
}

// Transfer records tx and fills rx with the scripted reply.
func (t *Transport) Transfer(tx, rx []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if err := spi.CheckBuffers(tx, rx); err != nil {
		return err
	}
	n := len(t.sent)
	t.sent = append(t.sent, append([]byte(nil), tx...))
	reply, err := t.respond(n, tx)
	if err != nil {
		return err
	}
	copy(rx, reply)
	return nil
}

// Close marks the transport closed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return t.closeErr
}

// Closed returns true once the transport has been closed.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Sent returns the frames transmitted so far.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.sent...)
}

// Transfers returns the number of transfers performed so far.
func (t *Transport) Transfers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

// Emulator is an spi.Transport that behaves like an LTC2418.
//
// As with the chip, each exchange returns the conversion for the channel
// selected by the previous exchange, so the first read after changing
// channel returns a result for the old channel.
type Emulator struct {
	*Transport
	mu       sync.Mutex
	values   [ltc241x.MaxChannels]int32
	selected int
}

// NewEmulator creates an Emulator with all inputs at zero and CH0 selected.
func NewEmulator() *Emulator {
	e := &Emulator{}
	e.Transport = New(e.convert)
	return e
}

// SetValue sets the value returned by conversions of the channel.
func (e *Emulator) SetValue(ch int, v int32) {
	e.mu.Lock()
	e.values[ch] = v
	e.mu.Unlock()
}

// Select sets the channel converted for the next exchange.
func (e *Emulator) Select(ch int) {
	e.mu.Lock()
	e.selected = ch
	e.mu.Unlock()
}

func (e *Emulator) convert(n int, tx []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	raw, err := ltc241x.MakeFrame(e.selected, e.values[e.selected])
	if err != nil {
		return nil, err
	}
	if len(tx) > 0 && tx[0]&0xe0 == 0xa0 {
		a := ltc241x.CommandAddress(tx[0])
		for ch := 0; ch < ltc241x.MaxChannels; ch++ {
			if ca, _ := ltc241x.Address(ch); ca == a {
				e.selected = ch
				break
			}
		}
	}
	rx := make([]byte, len(tx))
	if len(rx) >= ltc241x.FrameLen {
		binary.BigEndian.PutUint32(rx, raw)
	}
	return rx, nil
}
