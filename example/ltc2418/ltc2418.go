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
	"syscall"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"github.com/warthog618/ltc241x"
	"github.com/warthog618/ltc241x/spi/spidev"
)

// This example calibrates an LTC2418 connected to the spidev device, then
// reads all 16 channels once a second until interrupted.
// The inputs must be grounded during calibration, so leave calibrate false if
// the inputs are already connected to live signals.
func main() {
	cfg := loadConfig()
	osc := ltc241x.InternalOscillator
	if hz := uint32(cfg.MustGet("external").Uint()); hz != 0 {
		osc = ltc241x.ExternalOscillator(hz)
	}
	dc := ltc241x.Configure(cfg.MustGet("device").String(), osc, false)
	adc, err := ltc241x.Open(dc, spidev.Opener)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer adc.Close()
	if cfg.MustGet("calibrate").Bool() {
		cal, err := adc.Calibrate(int(cfg.MustGet("samples").Int()))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Printf("offsets: %v\n", cal)
	}
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	period := cfg.MustGet("period").Duration()
	for {
		vv, err := adc.ReadAll()
		for ch, v := range vv {
			fmt.Printf("ch%d=%d ", ch, v)
		}
		fmt.Println()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		select {
		case <-time.After(period):
		case <-sigdone:
			return
		}
	}
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"device":    "/dev/spidev1.0",
		"external":  0,
		"calibrate": false,
		"samples":   2,
		"period":    "1s",
	}
	def := dict.New(dict.WithMap(defaultConfig))
	shortFlags := map[byte]string{
		'c': "config-file",
	}
	// highest priority sources first - flags override environment
	cfg := config.New(
		pflag.New(pflag.WithShortFlags(shortFlags)),
		env.New(env.WithEnvPrefix("LTC2418_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "ltc2418.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust())
	return cfg
}
