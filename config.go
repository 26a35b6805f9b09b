// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package ltc241x

import (
	"fmt"
	"time"

	"github.com/warthog618/ltc241x/spi"
)

const (
	// InternalClockHz is the SCK frequency when the internal oscillator is used.
	InternalClockHz = 19200

	// InternalConversionTime is the worst case conversion time when the
	// internal oscillator is used.
	InternalConversionTime = 170 * time.Millisecond

	// MaxExternalHz is the fastest external oscillator the chip supports.
	MaxExternalHz = 2000000

	// MinConversionTime is the conversion time at MaxExternalHz, and so the
	// fastest the chip can convert.
	MinConversionTime = (conversionCycles / MaxExternalHz) * time.Millisecond

	// DefaultExternalHz is the external oscillator frequency used unless
	// otherwise specified.
	DefaultExternalHz = 500000

	// FrameLen is the number of bytes exchanged in each conversion.
	FrameLen = 4

	// oscillator cycles per conversion, scaled to ms.
	conversionCycles = 20510000
)

// Oscillator identifies the conversion clock source.
//
// The zero value is the internal oscillator.
type Oscillator struct {
	hz uint32
}

// InternalOscillator selects the internal conversion clock.
var InternalOscillator = Oscillator{}

// ExternalOscillator selects an external conversion clock of the given frequency.
//
// A frequency of 0 selects the internal oscillator.
func ExternalOscillator(hz uint32) Oscillator {
	return Oscillator{hz: hz}
}

// IsInternal returns true if the internal oscillator is in use.
func (o Oscillator) IsInternal() bool {
	return o.hz == 0
}

// Frequency returns the external oscillator frequency, or 0 if internal.
func (o Oscillator) Frequency() uint32 {
	return o.hz
}

// ClockHz returns the SCK frequency for the oscillator.
func (o Oscillator) ClockHz() uint32 {
	if o.IsInternal() {
		return InternalClockHz
	}
	return o.hz / 8
}

// ConversionTime returns the worst case conversion time for the oscillator,
// in whole milliseconds.
func (o Oscillator) ConversionTime() time.Duration {
	if o.IsInternal() {
		return InternalConversionTime
	}
	ct := time.Duration(conversionCycles/o.hz) * time.Millisecond
	if ct < MinConversionTime {
		ct = MinConversionTime
	}
	return ct
}

func (o Oscillator) String() string {
	if o.IsInternal() {
		return "internal"
	}
	return fmt.Sprintf("external %d Hz", o.hz)
}

// Variant identifies the chip.
type Variant int

const (
	// LTC2418 has 16 single-ended inputs.
	LTC2418 Variant = iota
	// LTC2414 has 8 single-ended inputs, using the first 8 addresses.
	LTC2414
)

// Channels returns the number of single-ended inputs on the chip.
func (v Variant) Channels() int {
	if v == LTC2414 {
		return 8
	}
	return MaxChannels
}

func (v Variant) String() string {
	if v == LTC2414 {
		return "LTC2414"
	}
	return "LTC2418"
}

// Calibration holds the per-channel offsets subtracted from readings.
type Calibration [MaxChannels]int32

// Config describes the ADC and the transport used to reach it.
type Config struct {
	Oscillator   Oscillator
	Differential bool
	Variant      Variant
	// ClockHz is the SCK frequency derived from the Oscillator.
	ClockHz uint32
	// ConversionTime is the worst case conversion time derived from the
	// Oscillator. Waits between conversions are multiples of this.
	ConversionTime time.Duration
	Calibration    Calibration
	SPI            spi.Config
}

// Configure returns the Config for an ADC on the named device.
//
// The returned SPI config is ready to be passed to a transport Opener.
func Configure(device string, osc Oscillator, differential bool) Config {
	scfg := spi.DefaultConfig()
	scfg.Device = device
	scfg.Mode = spi.Mode0
	scfg.LSBFirst = false
	scfg.BitsPerWord = 8
	scfg.FrameLen = FrameLen
	scfg.SpeedHz = osc.ClockHz()
	return Config{
		Oscillator:     osc,
		Differential:   differential,
		Variant:        LTC2418,
		ClockHz:        osc.ClockHz(),
		ConversionTime: osc.ConversionTime(),
		SPI:            scfg,
	}
}

// WithVariant returns a copy of the config for the given chip.
func (c Config) WithVariant(v Variant) Config {
	c.Variant = v
	return c
}

// settle is the time allowed between exchanges for a fresh conversion.
func (c Config) settle() time.Duration {
	return 2 * c.ConversionTime
}
