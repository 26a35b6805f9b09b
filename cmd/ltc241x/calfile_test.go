// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/ltc241x"
)

func TestCalibrationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	cal := ltc241x.Calibration{0: 12, 3: -40, 15: 7}
	err := saveCalibration(path, ltc241x.LTC2418, 4, cal)
	require.Nil(t, err)

	got, err := loadCalibration(path, ltc241x.LTC2418)
	assert.Nil(t, err)
	assert.Equal(t, cal, got)

	// wrong variant
	_, err = loadCalibration(path, ltc241x.LTC2414)
	assert.NotNil(t, err)
}

func TestCalibrationFileMissing(t *testing.T) {
	_, err := loadCalibration(filepath.Join(t.TempDir(), "nonexistent.yaml"), ltc241x.LTC2418)
	assert.True(t, os.IsNotExist(err))
}

func TestCalibrationFileLTC2414(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	cal := ltc241x.Calibration{1: 5, 7: -5}
	err := saveCalibration(path, ltc241x.LTC2414, 2, cal)
	require.Nil(t, err)

	got, err := loadCalibration(path, ltc241x.LTC2414)
	assert.Nil(t, err)
	assert.Equal(t, cal, got)
}

func TestCalibrationFileInvalid(t *testing.T) {
	patterns := []struct {
		name    string
		content string
	}{
		{"garbage", "offsets: [1, 2"},
		{"variant", "variant: ltc2400\noffsets:\n  0: 1\n"},
		{"channel", "variant: LTC2414\noffsets:\n  8: 1\n"},
		{"negative channel", "offsets:\n  -1: 1\n"},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cal.yaml")
			err := os.WriteFile(path, []byte(p.content), 0644)
			require.Nil(t, err)
			_, err = loadCalibration(path, ltc241x.LTC2414)
			assert.NotNil(t, err)
		}
		t.Run(p.name, tf)
	}
}

func TestCalibrationFileNoVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	err := os.WriteFile(path, []byte("offsets:\n  2: -3\n  5: 9\n"), 0644)
	require.Nil(t, err)
	got, err := loadCalibration(path, ltc241x.LTC2418)
	assert.Nil(t, err)
	assert.Equal(t, ltc241x.Calibration{2: -3, 5: 9}, got)
}
