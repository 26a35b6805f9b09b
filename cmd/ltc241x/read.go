// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/ltc241x"
	"go.uber.org/multierr"
)

func init() {
	readCmd.Flags().BoolVarP(&readOpts.Loop, "loop", "l", false, "read repeatedly until interrupted")
	readCmd.Flags().DurationVarP(&readOpts.Period, "period", "p", 0, "the minimum time between passes when looping")
	readCmd.Flags().IntVarP(&readOpts.Attempts, "attempts", "a", ltc241x.DefaultAttempts, "the number of retries for invalid conversions")
	readCmd.SetHelpTemplate(readCmd.HelpTemplate() + extendedReadHelp)
	rootCmd.AddCommand(readCmd)
}

var (
	readCmd = &cobra.Command{
		Use:     "read [ch1]...",
		Short:   "Read the value of a channel or channels",
		Long:    `Read the calibrated value of channels from the ADC.`,
		Example: "  ltc241x read 0 3 15\n  ltc241x read --loop --period 1s",
		RunE:    read,
	}
	readOpts = struct {
		Loop     bool
		Period   time.Duration
		Attempts int
	}{}
)

var extendedReadHelp = `
Channels:
  Channels are numbered 0-15 for the LTC2418 and 0-7 for the LTC2414.
  All channels are read if none are specified.

Consecutive conversions are separated by twice the conversion time, so a
pass over all channels of an LTC2418 on the internal oscillator takes
several seconds.
`

func read(cmd *cobra.Command, args []string) (err error) {
	cfg := loadConfig(cmd)
	dc, err := deviceConfig(cfg)
	if err != nil {
		return err
	}
	cc, err := parseChannels(args, dc.Variant)
	if err != nil {
		return err
	}
	adc, err := openADC(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, adc.Close())
	}()
	if !readOpts.Loop {
		return readPass(cmd, adc, cc, dc.ConversionTime)
	}
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	for {
		start := time.Now()
		if err = readPass(cmd, adc, cc, dc.ConversionTime); err != nil {
			return err
		}
		wait := readOpts.Period - time.Since(start)
		if wait < 2*dc.ConversionTime {
			wait = 2 * dc.ConversionTime
		}
		select {
		case <-time.After(wait):
		case <-sigdone:
			return nil
		}
	}
}

func readPass(cmd *cobra.Command, adc *ltc241x.ADC, cc []int, ct time.Duration) error {
	for i, ch := range cc {
		if i != 0 {
			time.Sleep(2 * ct)
		}
		v, err := adc.Read(ch)
		if err != nil {
			if _, ok := err.(*ltc241x.AcquisitionError); ok {
				// keep going - the remaining channels may still be readable
				logErr(cmd, err)
				continue
			}
			return err
		}
		fmt.Printf("ch%d: %d\n", ch, v)
	}
	return nil
}

func parseChannels(args []string, v ltc241x.Variant) ([]int, error) {
	if len(args) == 0 {
		cc := make([]int, v.Channels())
		for i := range cc {
			cc[i] = i
		}
		return cc, nil
	}
	cc := []int(nil)
	for _, arg := range args {
		ch, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("can't parse channel '%s'", arg)
		}
		if ch >= uint64(v.Channels()) {
			return nil, fmt.Errorf("unknown channel '%d'", ch)
		}
		cc = append(cc, int(ch))
	}
	return cc, nil
}
