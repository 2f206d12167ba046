// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

// Telemetry is the long-lived record of the last valid response plus the
// session counters. It starts invalid and only the engine mutates it;
// consumers must check Valid before trusting the derived fields.
//
// FrameCount covers telemetry-requesting frames only. Special commands
// do not request a response, so they never count as frames but their
// empty response windows do land in ErrorCount.
type Telemetry struct {
	ERPM         uint32 // electrical RPM
	RPM          uint32 // mechanical RPM
	PeriodMicros uint16 // raw period from the ESC
	Valid        bool
	LastUpdate   uint32 // coarse tick of the last successful decode
	FrameCount   uint32
	SuccessCount uint32
	ErrorCount   uint32
}

// SuccessRate returns successful decodes as a percentage of frames sent
func (t Telemetry) SuccessRate() float64 {
	if t.FrameCount == 0 {
		return 0
	}
	return float64(t.SuccessCount) * 100 / float64(t.FrameCount)
}
