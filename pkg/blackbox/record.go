// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

// Package blackbox writes and reads run logs: a CBOR stream of one
// header followed by telemetry records, one per protocol cycle worth
// keeping. Integer keys keep the on-disk samples small enough to log
// at the full update rate.
package blackbox

import "time"

// FormatVersion is written into every header. Readers reject files
// with a version they do not know.
const FormatVersion = 1

// Header opens a log stream.
type Header struct {
	Version    int       `cbor:"1,keyasint"`
	Speed      int       `cbor:"2,keyasint"` // protocol bit rate in kbit/s
	MotorPoles int       `cbor:"3,keyasint"`
	StartedAt  time.Time `cbor:"4,keyasint"`
	Note       string    `cbor:"5,keyasint,omitempty"`
}

// Record is one telemetry sample.
type Record struct {
	OffsetMs     uint32 `cbor:"1,keyasint"` // since the header's StartedAt
	Throttle     uint16 `cbor:"2,keyasint"`
	PeriodMicros uint16 `cbor:"3,keyasint"`
	ERPM         uint32 `cbor:"4,keyasint"`
	RPM          uint32 `cbor:"5,keyasint"`
	FrameCount   uint32 `cbor:"6,keyasint"`
	SuccessCount uint32 `cbor:"7,keyasint"`
	ErrorCount   uint32 `cbor:"8,keyasint"`
	Valid        bool   `cbor:"9,keyasint"`
}
