// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package ltc241x provides a driver for the LTC2414/LTC2418 24-bit delta-sigma
// SPI ADCs.
//
// Each exchange with the chip selects the channel for the next conversion
// while returning the result of the previous one. Results carry a parity bit
// and echo the address of the converted channel, so a result for the wrong
// channel, or one corrupted on the wire, is detected and the read retried
// after allowing time for a fresh conversion.
//
// Example of use:
//
//	cfg := ltc241x.Configure("/dev/spidev1.0", ltc241x.InternalOscillator, false)
//	adc, err := ltc241x.Open(cfg, spidev.Opener)
//	if err != nil {
//		panic(err)
//	}
//	defer adc.Close()
//	if _, err := adc.Calibrate(2); err != nil {
//		panic(err)
//	}
//	v, err := adc.Read(3)
//
// Only single-ended inputs are supported.
package ltc241x

import (
	"log"
	"sync"
	"time"

	"github.com/warthog618/ltc241x/spi"
)

const (
	// DefaultAttempts is the number of retries allowed by Read.
	DefaultAttempts = 3

	// CalibrationAttempts is the number of retries allowed for each
	// calibration sample.
	CalibrationAttempts = 3
)

// ADC reads conversions from a connected LTC2414 or LTC2418.
type ADC struct {
	mu       sync.Mutex
	cfg      Config
	t        spi.Transport
	attempts int
	sleep    func(time.Duration)
	logger   *log.Logger
}

// New creates an ADC that communicates over an open transport.
func New(cfg Config, t spi.Transport, options ...Option) *ADC {
	adc := &ADC{
		cfg:      cfg,
		t:        t,
		attempts: DefaultAttempts,
		sleep:    time.Sleep,
	}
	for _, option := range options {
		option(adc)
	}
	return adc
}

// Open opens the transport described by cfg.SPI and creates an ADC on it.
//
// A failure to open the transport is returned as a TransportError and is not
// retried.
func Open(cfg Config, open spi.Opener, options ...Option) (*ADC, error) {
	t, err := open(cfg.SPI)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}
	return New(cfg, t, options...), nil
}

// Close releases the transport.
func (adc *ADC) Close() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	if adc.t == nil {
		return ErrClosed
	}
	err := adc.t.Close()
	adc.t = nil
	return err
}

// Config returns the current configuration, including the calibration.
func (adc *ADC) Config() Config {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.cfg
}

// Calibration returns the current calibration offsets.
func (adc *ADC) Calibration() Calibration {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	return adc.cfg.Calibration
}

// SetCalibration replaces the calibration offsets, e.g. with ones restored
// from a previous Calibrate.
func (adc *ADC) SetCalibration(cal Calibration) {
	adc.mu.Lock()
	adc.cfg.Calibration = cal
	adc.mu.Unlock()
}

// Read returns the calibrated value of a single channel, allowing the
// default number of retries.
func (adc *ADC) Read(ch int) (int32, error) {
	return adc.ReadChannel(ch, adc.attempts)
}

// ReadChannel returns the calibrated value of a single channel.
//
// Results that fail validation are retried up to attempts times, waiting two
// conversion times before each retry, so at most attempts+1 exchanges are made.
func (adc *ADC) ReadChannel(ch, attempts int) (int32, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	if err := adc.check(ch); err != nil {
		return 0, err
	}
	return adc.read(ch, attempts, adc.cfg.Calibration[ch])
}

// ReadAll returns the calibrated values of all the channels on the chip.
//
// The channels are read in order, waiting two conversion times between them.
// On error the values read so far are returned.
func (adc *ADC) ReadAll() ([]int32, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	if adc.t == nil {
		return nil, ErrClosed
	}
	vv := make([]int32, 0, adc.cfg.Variant.Channels())
	for ch := 0; ch < adc.cfg.Variant.Channels(); ch++ {
		if ch != 0 {
			adc.sleep(adc.cfg.settle())
		}
		v, err := adc.read(ch, adc.attempts, adc.cfg.Calibration[ch])
		if err != nil {
			return vv, err
		}
		vv = append(vv, v)
	}
	return vv, nil
}

// Calibrate determines the zero offset of each channel on the chip by
// averaging samples uncalibrated reads.
//
// The new offsets replace the existing calibration only if every channel is
// read successfully. Otherwise a CalibrationError identifies the failed
// channel and the existing calibration is retained.
func (adc *ADC) Calibrate(samples int) (Calibration, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()
	if adc.t == nil {
		return adc.cfg.Calibration, ErrClosed
	}
	if samples <= 0 {
		return adc.cfg.Calibration, ErrInvalidSampleCount
	}
	cal := adc.cfg.Calibration
	for ch := 0; ch < adc.cfg.Variant.Channels(); ch++ {
		var total int64
		for i := 0; i < samples; i++ {
			v, err := adc.read(ch, CalibrationAttempts, 0)
			if err != nil {
				return adc.cfg.Calibration, &CalibrationError{Channel: ch, Err: err}
			}
			adc.sleep(adc.cfg.settle())
			total += int64(v)
		}
		cal[ch] = int32(total / int64(samples))
	}
	adc.cfg.Calibration = cal
	for ch := 0; ch < adc.cfg.Variant.Channels(); ch++ {
		adc.logf("calibration ch%d: %d", ch, cal[ch])
	}
	return cal, nil
}

func (adc *ADC) check(ch int) error {
	if adc.t == nil {
		return ErrClosed
	}
	if ch < 0 || ch >= adc.cfg.Variant.Channels() {
		return ErrInvalidChannel
	}
	return nil
}

// read performs the exchanges for a single conversion.
//
// Assumes caller holds the mu lock.
func (adc *ADC) read(ch, attempts int, offset int32) (int32, error) {
	if attempts < 0 {
		attempts = 0
	}
	for n := 0; ; n++ {
		cmd, err := Encode(adc.cfg.Differential, ch)
		if err != nil {
			return 0, err
		}
		var tx, rx [FrameLen]byte
		tx[0] = cmd
		if err = adc.t.Transfer(tx[:], rx[:]); err != nil {
			return 0, &TransportError{Op: "transfer", Err: err}
		}
		v, err := DecodeFrame(rx, ch, offset)
		if err == nil {
			adc.logf("ch%d raw: 0x%02x%02x%02x%02x output: %d", ch, rx[0], rx[1], rx[2], rx[3], v)
			return v, nil
		}
		adc.logf("ch%d %s on attempt %d", ch, err, n+1)
		if n >= attempts {
			return 0, &AcquisitionError{Channel: ch, Attempts: n + 1, Err: err}
		}
		adc.sleep(adc.cfg.settle())
	}
}

func (adc *ADC) logf(format string, v ...interface{}) {
	if adc.logger != nil {
		adc.logger.Printf(format, v...)
	}
}

// Option specifies a construction option for the ADC.
type Option func(*ADC)

// WithAttempts sets the number of retries allowed by Read and ReadAll.
func WithAttempts(attempts int) Option {
	return func(adc *ADC) {
		adc.attempts = attempts
	}
}

// WithSleep replaces the function used to wait for conversions.
//
// Defaults to time.Sleep.
func WithSleep(sleep func(time.Duration)) Option {
	return func(adc *ADC) {
		adc.sleep = sleep
	}
}

// WithLogger reports retries, raw results and calibrations to the logger.
func WithLogger(l *log.Logger) Option {
	return func(adc *ADC) {
		adc.logger = l
	}
}
