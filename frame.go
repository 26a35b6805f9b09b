// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package ltc241x

import "encoding/binary"

// Layout of the 32-bit conversion result, MSB first:
//
//	31   EOC, low when the conversion is ready
//	30   always low
//	29   SIG
//	28:6 23-bit magnitude
//	5:1  address of the converted channel
//	0    parity, making the word even
const (
	signBit        = 29
	magnitudeShift = 6
	magnitudeMask  = 0x7fffff
	addressShift   = 1
)

// Parity returns 0 if v has an even number of set bits, else 1.
func Parity(v uint32) uint32 {
	v ^= v >> 1
	v ^= v >> 2
	v = (v & 0x11111111) * 0x11111111
	return (v >> 28) & 1
}

// FrameAddress returns the address echoed in a conversion result.
func FrameAddress(raw uint32) uint8 {
	return uint8(raw>>addressShift) & addressMask
}

// FrameValue returns the signed value of a conversion result.
//
// A set SIG bit gives a positive value.
func FrameValue(raw uint32) int32 {
	v := int32((raw >> magnitudeShift) & magnitudeMask)
	if raw&(1<<signBit) == 0 {
		return -v
	}
	return v
}

// Decode validates a conversion result for the channel and returns its value
// less the calibration offset.
func Decode(raw uint32, ch int, offset int32) (int32, error) {
	if Parity(raw) != 0 {
		return 0, ErrParity
	}
	a, err := Address(ch)
	if err != nil {
		return 0, err
	}
	if FrameAddress(raw) != a {
		return 0, ErrAddressMismatch
	}
	return FrameValue(raw) - offset, nil
}

// DecodeFrame is Decode for a big-endian frame as received from the transport.
func DecodeFrame(frame [FrameLen]byte, ch int, offset int32) (int32, error) {
	return Decode(binary.BigEndian.Uint32(frame[:]), ch, offset)
}

// MakeFrame returns the conversion result the chip would return for the value
// on the channel.
//
// Values beyond the 23-bit magnitude are clipped.
func MakeFrame(ch int, value int32) (uint32, error) {
	a, err := Address(ch)
	if err != nil {
		return 0, err
	}
	var raw uint32
	mag := int64(value)
	if mag < 0 {
		mag = -mag
	} else {
		raw |= 1 << signBit
	}
	if mag > magnitudeMask {
		mag = magnitudeMask
	}
	raw |= uint32(mag) << magnitudeShift
	raw |= uint32(a) << addressShift
	raw |= Parity(raw)
	return raw, nil
}
