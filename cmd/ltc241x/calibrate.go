// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func init() {
	calibrateCmd.Flags().IntVarP(&calOpts.Samples, "samples", "n", 2, "the number of conversions averaged per channel")
	calibrateCmd.Flags().StringVarP(&calOpts.Output, "output", "o", "", "save the offsets to the YAML file (default calibration.file)")
	calibrateCmd.SetHelpTemplate(calibrateCmd.HelpTemplate() + extendedCalibrateHelp)
	rootCmd.AddCommand(calibrateCmd)
}

var (
	calibrateCmd = &cobra.Command{
		Use:     "calibrate",
		Short:   "Measure the zero offset of each channel",
		Long:    `Measure the zero offset of each channel and optionally save it for later reads.`,
		Example: "  ltc241x calibrate --samples 4 --output cal.yaml",
		Args:    cobra.NoArgs,
		RunE:    calibrate,
	}
	calOpts = struct {
		Samples int
		Output  string
	}{}
)

var extendedCalibrateHelp = `
All inputs must be tied to the reference ground while calibrating.
The offsets are only saved if every channel is successfully measured.
`

func calibrate(cmd *cobra.Command, args []string) (err error) {
	if calOpts.Samples <= 0 {
		return errors.New("samples must be positive")
	}
	cfg := loadConfig(cmd)
	dc, err := deviceConfig(cfg)
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
	cal, err := adc.Calibrate(calOpts.Samples)
	if err != nil {
		return err
	}
	for ch := 0; ch < dc.Variant.Channels(); ch++ {
		fmt.Printf("ch%d: %d\n", ch, cal[ch])
	}
	path := calOpts.Output
	if path == "" {
		path = cfg.MustGet("calibration.file").String()
	}
	if path == "" {
		return nil
	}
	if err = saveCalibration(path, dc.Variant, calOpts.Samples, cal); err != nil {
		return err
	}
	fmt.Printf("saved to %s\n", path)
	return nil
}
