// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package spidev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/ltc241x/spi"
	"github.com/warthog618/ltc241x/spi/spidev"
)

func TestOpenMissing(t *testing.T) {
	cfg := spi.DefaultConfig()
	cfg.Device = filepath.Join(t.TempDir(), "spidev9.9")
	s, err := spidev.Open(cfg)
	assert.Nil(t, s)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenNotSpidev(t *testing.T) {
	// a regular file rejects the spidev ioctls
	cfg := spi.DefaultConfig()
	cfg.Device = filepath.Join(t.TempDir(), "notspi")
	require.Nil(t, os.WriteFile(cfg.Device, nil, 0600))
	tr, err := spidev.Opener(cfg)
	assert.Nil(t, tr)
	assert.NotNil(t, err)
}
