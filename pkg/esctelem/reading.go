// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package esctelem

import (
	"fmt"
	"time"
)

// Reading is one parsed telemetry packet.
type Reading struct {
	temperature uint8  // degrees C
	voltage     uint16 // 0.01V units
	current     uint16 // 0.01A units
	consumption uint16 // mAh
	erpm        uint16 // electrical RPM / 100
	timestamp   time.Time
}

// Temperature returns the ESC temperature in degrees C
func (r *Reading) Temperature() uint8 {
	return r.temperature
}

// Voltage returns the pack voltage in volts
func (r *Reading) Voltage() float64 {
	return float64(r.voltage) / 100.0
}

// Current returns the motor current in amps
func (r *Reading) Current() float64 {
	return float64(r.current) / 100.0
}

// Consumption returns the consumed charge in mAh
func (r *Reading) Consumption() uint16 {
	return r.consumption
}

// ERPM returns the electrical RPM. The wire format carries eRPM/100.
func (r *Reading) ERPM() uint32 {
	return uint32(r.erpm) * 100
}

// RPM returns the mechanical RPM for the given motor pole count
func (r *Reading) RPM(poles int) uint32 {
	if poles < 2 {
		return 0
	}
	return r.ERPM() * 2 / uint32(poles)
}

// Timestamp returns when the packet completed
func (r *Reading) Timestamp() time.Time {
	return r.timestamp
}

// String formats the reading for log output
func (r *Reading) String() string {
	return fmt.Sprintf("temp %d°C  %.2fV  %.2fA  %d mAh  eRPM %d",
		r.temperature, r.Voltage(), r.Current(), r.consumption, r.ERPM())
}
