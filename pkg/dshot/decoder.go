// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

import "errors"

// Decode failure modes. The engine folds all of them into the error
// counter; callers that keep richer statistics can branch with errors.Is.
var (
	ErrNotEnoughEdges   = errors.New("dshot: not enough edges captured")
	ErrIncompleteFrame  = errors.New("dshot: incomplete telemetry frame")
	ErrInvalidGCRSymbol = errors.New("dshot: invalid GCR symbol")
	ErrChecksumMismatch = errors.New("dshot: telemetry checksum mismatch")
)

// Result carries one decoded telemetry response
type Result struct {
	PeriodMicros uint16 // raw 12-bit eRPM period from the ESC
	ERPM         uint32 // electrical RPM
	RPM          uint32 // mechanical RPM for the configured pole count
}

// Decoder converts captured edge timestamps into telemetry values
type Decoder struct {
	bitPeriod uint32 // response bit duration in timer ticks
	halfBit   uint32
	poles     uint32
}

// NewDecoder creates a decoder for the given response bit period
// (timer ticks per telemetry bit) and motor pole count.
func NewDecoder(bitPeriodTicks uint16, motorPoles int) *Decoder {
	return &Decoder{
		bitPeriod: uint32(bitPeriodTicks),
		halfBit:   uint32(bitPeriodTicks) / 2,
		poles:     uint32(motorPoles),
	}
}

// Decode recovers the 21-bit GCR response from edge timestamps and
// returns the validated telemetry values.
//
// Timestamps come from a free-running 16-bit counter, so adjacent
// differences are taken with wrapping uint16 arithmetic. Each gap is
// rounded to the nearest whole number of bit periods (minimum 1, capped
// at the symbol width) of the current line level, starting from idle
// high and flipping at every edge. The trailing marker bit is dropped
// before symbol lookup, and the period checksum must match.
func (d *Decoder) Decode(edges []uint16) (Result, error) {
	if len(edges) < 2 {
		return Result{}, ErrNotEnoughEdges
	}

	var gcrBits uint32
	bitCount := 0
	level := uint32(1) // line idles high

	for i := 1; i < len(edges) && bitCount < TelemetryFrameBits; i++ {
		delta := uint32(edges[i] - edges[i-1]) // wraps at the counter width

		numBits := int((delta + d.halfBit) / d.bitPeriod)
		if numBits == 0 {
			numBits = 1
		}
		if numBits > GCRBitsPerNibble {
			numBits = GCRBitsPerNibble
		}

		for b := 0; b < numBits && bitCount < TelemetryFrameBits; b++ {
			gcrBits = gcrBits<<1 | level
			bitCount++
		}
		level ^= 1
	}

	if bitCount < TelemetryFrameBits-1 {
		return Result{}, ErrIncompleteFrame
	}

	// Drop the marker bit and keep the 20 GCR data bits.
	decoded, ok := DecodeGCRFrame(gcrBits >> 1 & 0xFFFFF)
	if !ok {
		return Result{}, ErrInvalidGCRSymbol
	}

	period := decoded >> 4 // 12-bit eRPM period in microseconds
	if Checksum(period) != uint8(decoded&0x0F) {
		return Result{}, ErrChecksumMismatch
	}

	return d.result(period), nil
}

// result converts a validated period into telemetry values. A zero
// period is a stopped motor, not an error.
func (d *Decoder) result(period uint16) Result {
	res := Result{PeriodMicros: period}
	if period > 0 {
		res.ERPM = 60000000 / uint32(period)
		res.RPM = res.ERPM * 2 / d.poles
	}
	return res
}
