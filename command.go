// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package ltc241x

// MaxChannels is the number of single-ended inputs on the largest chip.
const MaxChannels = 16

// preamble is the leading 101 of a command that selects a new channel.
const preamble = 0x05 << 5

const addressMask = 0x1f

// addresses maps channel to the SGL ODD A2 A1 A0 address field.
//
// The odd channels have the ODD bit set, so CH0 and CH1 share A2-A0.
var addresses = [MaxChannels]uint8{
	0x10, 0x18, 0x11, 0x19, 0x12, 0x1a, 0x13, 0x1b,
	0x14, 0x1c, 0x15, 0x1d, 0x16, 0x1e, 0x17, 0x1f,
}

// Address returns the 5-bit address of a single-ended channel.
func Address(ch int) (uint8, error) {
	if ch < 0 || ch >= MaxChannels {
		return 0, ErrInvalidChannel
	}
	return addresses[ch], nil
}

// Encode returns the command that selects the channel for the next conversion.
func Encode(differential bool, ch int) (byte, error) {
	if differential {
		return 0, ErrNotImplemented
	}
	a, err := Address(ch)
	if err != nil {
		return 0, err
	}
	return preamble | a, nil
}

// CommandAddress returns the address field of a command.
func CommandAddress(cmd byte) uint8 {
	return cmd & addressMask
}
