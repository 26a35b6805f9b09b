// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the derived device configuration",
	Long:  `Display the device configuration derived from flags, environment, config file and defaults.`,
	Args:  cobra.NoArgs,
	RunE:  showConfig,
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	dc, err := deviceConfig(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("variant:         %s\n", dc.Variant)
	fmt.Printf("channels:        %d\n", dc.Variant.Channels())
	fmt.Printf("differential:    %t\n", dc.Differential)
	fmt.Printf("oscillator:      %s\n", dc.Oscillator)
	fmt.Printf("clock:           %d Hz\n", dc.ClockHz)
	fmt.Printf("conversion time: %s\n", dc.ConversionTime)
	fmt.Printf("driver:          %s\n", cfg.MustGet("spi.driver").String())
	fmt.Printf("spi:             %s\n", dc.SPI)
	fmt.Printf("attempts:        %d\n", cfg.MustGet("attempts").Int())
	if path := cfg.MustGet("calibration.file").String(); path != "" {
		fmt.Printf("calibration:     %s\n", path)
	}
	return nil
}
