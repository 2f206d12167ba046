// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

// Frame represents a single 16-bit DShot command frame before wire encoding
type Frame struct {
	payload   uint16
	telemetry bool
}

// NewThrottleFrame builds a throttle frame with the telemetry request bit
// set, as bidirectional DShot requires. Values above ThrottleMax are
// clamped; values below ThrottleMin address the command range.
func NewThrottleFrame(throttle uint16) Frame {
	if throttle > ThrottleMax {
		throttle = ThrottleMax
	}
	return Frame{payload: throttle, telemetry: true}
}

// NewCommandFrame builds a special-command frame. Commands do not request
// a telemetry response.
func NewCommandFrame(cmd Command) Frame {
	value := uint16(cmd)
	if value > ThrottleMax {
		value = ThrottleMax
	}
	return Frame{payload: value}
}

// Payload returns the 11-bit throttle or command value
func (f Frame) Payload() uint16 {
	return f.payload
}

// TelemetryRequest returns true if the frame requests a telemetry response
func (f Frame) TelemetryRequest() bool {
	return f.telemetry
}

// Encode returns the wire frame:
// [11-bit value][1-bit telemetry request][4-bit checksum]
func (f Frame) Encode() uint16 {
	packet := f.payload << 1
	if f.telemetry {
		packet |= 1
	}
	return packet<<4 | uint16(Checksum(packet))
}

// DutySequence expands the frame into FrameBits+1 timer compare values for
// the inverted (bidirectional) line, MSB first. The trailing entry holds
// the line at idle level after the last bit so the frame ends cleanly.
func (f Frame) DutySequence(timerPeriod uint16) []uint16 {
	period := uint32(timerPeriod)
	bit0 := uint16(period - period*bit0DutyPercent/100)
	bit1 := uint16(period - period*bit1DutyPercent/100)

	seq := make([]uint16, FrameBits+1)
	packet := f.Encode()
	for i := 0; i < FrameBits; i++ {
		if packet&0x8000 != 0 {
			seq[i] = bit1
		} else {
			seq[i] = bit0
		}
		packet <<= 1
	}
	seq[FrameBits] = timerPeriod
	return seq
}
