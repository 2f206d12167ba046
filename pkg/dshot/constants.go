// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

// Package dshot implements the bidirectional DShot ESC protocol.
//
// DShot sends 16-bit command frames (an 11-bit throttle or command value,
// a telemetry request flag, and a 4-bit checksum) to an ESC over a single
// signal line. In bidirectional mode the signal is inverted and, after
// each frame, the line switches to input so the ESC's GCR-encoded eRPM
// response can be captured as edge timestamps and decoded.
//
// The package is hardware-agnostic: timed output, edge capture and the
// coarse tick counter are consumed through the SignalLine and TickSource
// interfaces declared in hardware.go.
package dshot

// Speed selects the protocol bit rate in kbit/s.
type Speed int

// Supported protocol speeds
const (
	Speed150  Speed = 150
	Speed300  Speed = 300
	Speed600  Speed = 600
	Speed1200 Speed = 1200
)

// Frame layout
const (
	FrameBits   = 16 // bits per command frame
	ThrottleMin = 48 // values 0-47 are reserved for commands
	ThrottleMax = 2047
	CommandMax  = Command(47)
)

// Inverted bit timing in percent of the timer period. The line idles
// high; a '0' bit pulls low for 37% of the bit, a '1' bit for 75%.
const (
	bit0DutyPercent = 37
	bit1DutyPercent = 75
)

// Command is a special (non-throttle) frame payload.
type Command uint16

// Special commands 0-47. The extended-telemetry mode switches take
// effect only after EDTRepeatCount consecutive repeats.
const (
	CmdMotorStop                Command = 0
	CmdBeep1                    Command = 1
	CmdBeep2                    Command = 2
	CmdBeep3                    Command = 3
	CmdBeep4                    Command = 4
	CmdBeep5                    Command = 5
	CmdESCInfo                  Command = 6
	CmdSpinDirection1           Command = 7
	CmdSpinDirection2           Command = 8
	Cmd3DModeOff                Command = 9
	Cmd3DModeOn                 Command = 10
	CmdSettingsRequest          Command = 11
	CmdSaveSettings             Command = 12
	CmdExtendedTelemetryEnable  Command = 13
	CmdExtendedTelemetryDisable Command = 14
)

// EDTRepeatCount is how many consecutive repeats the extended-telemetry
// enable/disable commands need before an ESC acts on them.
const EDTRepeatCount = 6

// Telemetry response framing
const (
	TelemetryFrameBits = 21 // 20 GCR bits plus a trailing marker bit
	GCRBitsPerNibble   = 5
	TelemetryNibbles   = 4
	EdgeBufferCapacity = 32

	// telemetryEdgeTarget is the edge count at which capture stops early
	// instead of waiting out the response window.
	telemetryEdgeTarget = 20
)

// Defaults applied to zero Config fields
const (
	DefaultTimerClockHz         = 168000000
	DefaultMotorPoles           = 14
	DefaultSpeed                = Speed600
	DefaultResponseDelayTicks   = 1
	DefaultResponseTimeoutTicks = 2
)

// State identifies the protocol engine's current phase.
type State int

// Engine states
const (
	StateIdle State = iota
	StateSending
	StateAwaitingResponse
	StateReceiving
	StateDecoding
)
