// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

// gcrInvalid marks 5-bit codes with no nibble assignment
const gcrInvalid = 0xFF

// gcrDecodeTable maps 5-bit GCR symbols to 4-bit nibbles. The GCR
// alphabet guarantees no run of more than two equal bits inside a
// symbol, which keeps the response demodulatable from edge timing.
var gcrDecodeTable = [32]uint8{
	gcrInvalid, gcrInvalid, gcrInvalid, gcrInvalid, // 0x00-0x03
	gcrInvalid, gcrInvalid, gcrInvalid, gcrInvalid, // 0x04-0x07
	gcrInvalid, 0x09, 0x0A, 0x0B, // 0x08-0x0B
	gcrInvalid, 0x0D, 0x0E, 0x0F, // 0x0C-0x0F
	gcrInvalid, gcrInvalid, 0x02, 0x03, // 0x10-0x13
	gcrInvalid, 0x05, 0x06, 0x07, // 0x14-0x17
	gcrInvalid, 0x00, 0x08, 0x01, // 0x18-0x1B
	gcrInvalid, 0x04, 0x0C, gcrInvalid, // 0x1C-0x1F
}

// gcrEncodeTable is the inverse mapping, nibble to symbol
var gcrEncodeTable = [16]uint8{
	0x19, 0x1B, 0x12, 0x13, 0x1D, 0x15, 0x16, 0x17,
	0x1A, 0x09, 0x0A, 0x0B, 0x1E, 0x0D, 0x0E, 0x0F,
}

// DecodeGCRSymbol maps one 5-bit symbol to its nibble. ok is false for
// codes outside the GCR alphabet; callers must not treat the returned
// nibble as data in that case.
func DecodeGCRSymbol(symbol uint8) (uint8, bool) {
	nibble := gcrDecodeTable[symbol&0x1F]
	return nibble, nibble != gcrInvalid
}

// EncodeGCRSymbol maps a nibble to its 5-bit GCR symbol
func EncodeGCRSymbol(nibble uint8) uint8 {
	return gcrEncodeTable[nibble&0x0F]
}

// DecodeGCRFrame unpacks the 20-bit response payload (four symbols, MSB
// first) into a 16-bit value. ok is false if any symbol is invalid.
func DecodeGCRFrame(gcr uint32) (uint16, bool) {
	var value uint16
	for i := 0; i < TelemetryNibbles; i++ {
		symbol := uint8(gcr>>(15-i*GCRBitsPerNibble)) & 0x1F
		nibble, ok := DecodeGCRSymbol(symbol)
		if !ok {
			return 0, false
		}
		value = value<<4 | uint16(nibble)
	}
	return value, true
}

// EncodeGCRFrame is the exact inverse of DecodeGCRFrame. ESC simulators
// and tests use it to synthesize responses.
func EncodeGCRFrame(value uint16) uint32 {
	var gcr uint32
	for shift := 12; shift >= 0; shift -= 4 {
		gcr = gcr<<GCRBitsPerNibble | uint32(EncodeGCRSymbol(uint8(value>>uint(shift))))
	}
	return gcr
}
