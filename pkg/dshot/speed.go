// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

import "fmt"

// BitRate returns the command bit rate in bits per second
func (s Speed) BitRate() uint32 {
	return uint32(s) * 1000
}

// TelemetryBitRate returns the response bit rate. The ESC answers at 5/4
// of the command rate (750 kbit/s for DSHOT600).
func (s Speed) TelemetryBitRate() uint32 {
	return s.BitRate() * 5 / 4
}

// TimerPeriod returns the compare cycle length, in timer ticks, of one
// command bit at the given timer clock.
func (s Speed) TimerPeriod(clockHz uint32) uint16 {
	return uint16(clockHz / s.BitRate())
}

// TelemetryBitPeriod returns the nominal response bit duration in timer ticks
func (s Speed) TelemetryBitPeriod(clockHz uint32) uint16 {
	return uint16(clockHz / s.TelemetryBitRate())
}

// Valid reports whether s is a supported protocol speed
func (s Speed) Valid() bool {
	switch s {
	case Speed150, Speed300, Speed600, Speed1200:
		return true
	}
	return false
}

// String returns the conventional protocol name, e.g. "DSHOT600"
func (s Speed) String() string {
	return fmt.Sprintf("DSHOT%d", int(s))
}
