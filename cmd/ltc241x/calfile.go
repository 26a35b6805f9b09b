// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/warthog618/ltc241x"
	"gopkg.in/yaml.v3"
)

// calFile is the persisted form of a calibration table.
type calFile struct {
	Variant    string        `yaml:"variant"`
	Samples    int           `yaml:"samples,omitempty"`
	Calibrated time.Time     `yaml:"calibrated,omitempty"`
	Offsets    map[int]int32 `yaml:"offsets"`
}

func saveCalibration(path string, v ltc241x.Variant, samples int, cal ltc241x.Calibration) error {
	cf := calFile{
		Variant:    v.String(),
		Samples:    samples,
		Calibrated: time.Now().UTC().Truncate(time.Second),
		Offsets:    make(map[int]int32, v.Channels()),
	}
	for ch := 0; ch < v.Channels(); ch++ {
		cf.Offsets[ch] = cal[ch]
	}
	buf, err := yaml.Marshal(&cf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

// loadCalibration reads a calibration table saved by saveCalibration.
//
// Channels missing from the file are left uncalibrated.
func loadCalibration(path string, v ltc241x.Variant) (ltc241x.Calibration, error) {
	var cal ltc241x.Calibration
	buf, err := os.ReadFile(path)
	if err != nil {
		return cal, err
	}
	var cf calFile
	if err = yaml.Unmarshal(buf, &cf); err != nil {
		return cal, fmt.Errorf("%s: %w", path, err)
	}
	if cf.Variant != "" {
		fv, err := parseVariant(cf.Variant)
		if err != nil {
			return cal, fmt.Errorf("%s: %w", path, err)
		}
		if fv != v {
			return cal, fmt.Errorf("%s: calibration is for %s, not %s", path, fv, v)
		}
	}
	for ch, offset := range cf.Offsets {
		if ch < 0 || ch >= v.Channels() {
			return cal, fmt.Errorf("%s: unknown channel '%d'", path, ch)
		}
		cal[ch] = offset
	}
	return cal, nil
}
