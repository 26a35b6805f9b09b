// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

// A utility to read an LTC2414 or LTC2418 ADC.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/ltc241x"
	"github.com/warthog618/ltc241x/spi"
	"github.com/warthog618/ltc241x/spi/bitbash"
	"github.com/warthog618/ltc241x/spi/gpiomem"
	"github.com/warthog618/ltc241x/spi/periph"
	"github.com/warthog618/ltc241x/spi/spidev"
)

var version = "undefined"

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootOpts.ConfigFile, "config-file", "c", "", "read configuration from the JSON file")
	pf.StringVarP(&rootOpts.Device, "device", "d", "", "the SPI device, e.g. /dev/spidev1.0")
	pf.StringVar(&rootOpts.Driver, "driver", "", "the SPI driver [spidev|periph|bitbash|gpiomem]")
	pf.StringVar(&rootOpts.Variant, "variant", "", "the chip [ltc2418|ltc2414]")
	pf.Uint32Var(&rootOpts.External, "external", 0, "use an external oscillator of the given frequency (Hz)")
	pf.StringVar(&rootOpts.CalFile, "calibration-file", "", "the YAML file holding calibration offsets")
	pf.BoolVarP(&rootOpts.Verbose, "verbose", "v", false, "report retries and raw conversions")
	rootCmd.SetHelpTemplate(rootCmd.HelpTemplate() + extendedRootHelp)
}

var (
	rootCmd = &cobra.Command{
		Use:   "ltc241x",
		Short: "ltc241x is a utility to read LTC2414/LTC2418 ADCs",
		Long:  "ltc241x is a utility to read and calibrate LTC2414/LTC2418 ADCs connected via SPI",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		Version: version,
		// errors are reported once, by main
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootOpts = struct {
		ConfigFile string
		Device     string
		Driver     string
		Variant    string
		External   uint32
		CalFile    string
		Verbose    bool
	}{}
)

var extendedRootHelp = `
Configuration:
  Flags override environment variables (LTC241X_SPI_DEVICE etc.) which
  override the config file (ltc241x.json unless specified) which overrides
  the defaults.
`

func main() {
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		logErr(cmd, err)
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "ltc241x %s: %s\n", cmd.Name(), err)
}

var defaultConfig = map[string]interface{}{
	"spi": map[string]interface{}{
		"driver": "spidev",
		"device": "/dev/spidev1.0",
	},
	"oscillator": map[string]interface{}{
		"external":  false,
		"frequency": ltc241x.DefaultExternalHz,
	},
	"differential": false,
	"variant":      "ltc2418",
	"attempts":     ltc241x.DefaultAttempts,
	"calibration": map[string]interface{}{
		"file": "",
	},
	// the SPI0 pins of the Raspberry Pi J8 header, used by bitbash and gpiomem
	"bitbash": map[string]interface{}{
		"chip": "gpiochip0",
		"sclk": 11,
		"ssz":  8,
		"mosi": 10,
		"miso": 9,
	},
}

// flagOverrides returns the config set explicitly on the command line.
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	spiCfg := map[string]interface{}{}
	m := map[string]interface{}{}
	flags := cmd.Flags()
	if flags.Changed("config-file") {
		m["config"] = map[string]interface{}{"file": rootOpts.ConfigFile}
	}
	if flags.Changed("device") {
		spiCfg["device"] = rootOpts.Device
	}
	if flags.Changed("driver") {
		spiCfg["driver"] = rootOpts.Driver
	}
	if len(spiCfg) != 0 {
		m["spi"] = spiCfg
	}
	if flags.Changed("variant") {
		m["variant"] = rootOpts.Variant
	}
	if flags.Changed("external") {
		m["oscillator"] = map[string]interface{}{
			"external":  rootOpts.External != 0,
			"frequency": rootOpts.External,
		}
	}
	if flags.Lookup("attempts") != nil && flags.Changed("attempts") {
		m["attempts"] = readOpts.Attempts
	}
	if flags.Changed("calibration-file") {
		m["calibration"] = map[string]interface{}{"file": rootOpts.CalFile}
	}
	return m
}

// loadConfig layers flags over environment over config file over defaults.
func loadConfig(cmd *cobra.Command) *config.Config {
	def := dict.New(dict.WithMap(defaultConfig))
	// highest priority sources first - flags override environment
	cfg := config.New(
		dict.New(dict.WithMap(flagOverrides(cmd))),
		env.New(env.WithEnvPrefix("LTC241X_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "ltc241x.json", json.NewDecoder()))
	return cfg.GetConfig("", config.WithMust())
}

// deviceConfig builds the ADC config from the layered config.
func deviceConfig(cfg *config.Config) (ltc241x.Config, error) {
	osc := ltc241x.InternalOscillator
	if cfg.MustGet("oscillator.external").Bool() {
		osc = ltc241x.ExternalOscillator(uint32(cfg.MustGet("oscillator.frequency").Uint()))
	}
	dc := ltc241x.Configure(
		cfg.MustGet("spi.device").String(),
		osc,
		cfg.MustGet("differential").Bool())
	v, err := parseVariant(cfg.MustGet("variant").String())
	if err != nil {
		return dc, err
	}
	return dc.WithVariant(v), nil
}

func parseVariant(s string) (ltc241x.Variant, error) {
	switch strings.ToLower(s) {
	case "ltc2418", "2418":
		return ltc241x.LTC2418, nil
	case "ltc2414", "2414":
		return ltc241x.LTC2414, nil
	}
	return ltc241x.LTC2418, fmt.Errorf("unknown variant '%s'", s)
}

func opener(cfg *config.Config) (spi.Opener, error) {
	driver := strings.ToLower(cfg.MustGet("spi.driver").String())
	switch driver {
	case "spidev":
		return spidev.Opener, nil
	case "periph":
		return periph.Opener, nil
	case "bitbash":
		return bitbash.Opener(cfg.MustGet("bitbash.chip").String(), bitbashPins(cfg)), nil
	case "gpiomem":
		return gpiomem.Opener(bitbashPins(cfg)), nil
	}
	return nil, fmt.Errorf("unknown driver '%s'", driver)
}

func bitbashPins(cfg *config.Config) bitbash.Pins {
	return bitbash.Pins{
		Sclk: int(cfg.MustGet("bitbash.sclk").Int()),
		Ssz:  int(cfg.MustGet("bitbash.ssz").Int()),
		Mosi: int(cfg.MustGet("bitbash.mosi").Int()),
		Miso: int(cfg.MustGet("bitbash.miso").Int()),
	}
}

// openADC opens the ADC described by the config and restores any saved
// calibration.
func openADC(cfg *config.Config) (*ltc241x.ADC, error) {
	dc, err := deviceConfig(cfg)
	if err != nil {
		return nil, err
	}
	open, err := opener(cfg)
	if err != nil {
		return nil, err
	}
	options := []ltc241x.Option{
		ltc241x.WithAttempts(int(cfg.MustGet("attempts").Int())),
	}
	if rootOpts.Verbose {
		options = append(options, ltc241x.WithLogger(log.New(os.Stderr, "ltc241x: ", log.Lmicroseconds)))
	}
	adc, err := ltc241x.Open(dc, open, options...)
	if err != nil {
		return nil, err
	}
	if path := cfg.MustGet("calibration.file").String(); path != "" {
		cal, err := loadCalibration(path, dc.Variant)
		if err == nil {
			adc.SetCalibration(cal)
		} else if !os.IsNotExist(err) {
			adc.Close()
			return nil, err
		}
	}
	return adc, nil
}
