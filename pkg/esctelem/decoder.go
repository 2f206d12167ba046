// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

// Package esctelem decodes the KISS/BLHeli_32 serial telemetry stream
// an ESC emits on its dedicated UART line at 115200 baud: fixed
// 10-byte packets of temperature, voltage, current, consumption and
// eRPM, closed by a CRC-8.
//
// The stream has no framing bytes. Alignment is recovered through the
// inter-byte timeout: ESCs send packets in one burst, so a gap longer
// than Timeout marks a packet boundary.
package esctelem

import (
	"errors"
	"fmt"
	"time"
)

// Protocol constants
const (
	PacketSize      = 10
	DefaultBaudRate = 115200
	DefaultTimeout  = 100 * time.Millisecond
)

// ErrCRCMismatch is returned when a complete packet fails its checksum.
var ErrCRCMismatch = errors.New("esctelem: CRC mismatch")

// Decoder accumulates bytes into telemetry packets.
type Decoder struct {
	buffer   [PacketSize]byte
	index    int
	lastByte time.Time
	timeout  time.Duration
}

// NewDecoder creates a decoder with the default inter-byte timeout
func NewDecoder() *Decoder {
	return &Decoder{timeout: DefaultTimeout}
}

// SetTimeout overrides the inter-byte timeout. Zero disables it.
func (d *Decoder) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

// Reset discards any partially received packet
func (d *Decoder) Reset() {
	d.index = 0
}

// DecodeByte processes a single received byte.
// Returns a completed reading, or nil while the packet is incomplete.
// Returns an error when a complete packet fails validation.
func (d *Decoder) DecodeByte(b byte) (*Reading, error) {
	now := time.Now()
	if d.index > 0 && d.timeout > 0 && now.Sub(d.lastByte) > d.timeout {
		d.index = 0
	}
	d.lastByte = now

	d.buffer[d.index] = b
	d.index++
	if d.index < PacketSize {
		return nil, nil
	}
	d.index = 0

	calculated := CalculateCRC(d.buffer[:PacketSize-1])
	if calculated != d.buffer[PacketSize-1] {
		return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X",
			ErrCRCMismatch, calculated, d.buffer[PacketSize-1])
	}

	return &Reading{
		temperature: d.buffer[0],
		voltage:     uint16(d.buffer[1])<<8 | uint16(d.buffer[2]),
		current:     uint16(d.buffer[3])<<8 | uint16(d.buffer[4]),
		consumption: uint16(d.buffer[5])<<8 | uint16(d.buffer[6]),
		erpm:        uint16(d.buffer[7])<<8 | uint16(d.buffer[8]),
		timestamp:   now,
	}, nil
}
