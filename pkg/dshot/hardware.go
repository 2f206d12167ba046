// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

// LineConfig carries the timer settings a SignalLine needs before first use
type LineConfig struct {
	TimerPeriod uint16 // compare cycle length in timer ticks (one command bit)
}

// SignalLine is the single-wire hardware the engine drives: a timed
// output generator and an edge-timestamp capture unit sharing one
// physical pin, with an explicit direction switch between them.
//
// The completion callbacks fire from the driver's own context (an
// interrupt handler on real hardware, a goroutine in a simulator), at
// most once per operation, and only for operations that were accepted.
// Implementations must not hold internal locks while invoking them.
type SignalLine interface {
	// Configure prepares the line. The engine calls it once before use.
	Configure(LineConfig) error

	// SwitchToOutput puts the line in drive mode (compare output, rising
	// active). Any capture feed is disabled first.
	SwitchToOutput()

	// SwitchToInput puts the line in capture mode with a weak pull to
	// the idle-high level. The output feed is disabled first.
	SwitchToInput()

	// Transmit streams one duty sequence autonomously at the configured
	// bit rate. The line must be in output mode. OnTransmitComplete
	// fires once after the final entry when Transmit returned nil.
	Transmit(duty []uint16) error

	// ArmCapture clears the edge buffer and starts capturing timestamps
	// on both edges, up to EdgeBufferCapacity entries.
	ArmCapture()

	// StopCapture freezes the buffer and the captured-edge count.
	StopCapture()

	// CapturedEdges reports how many edges have been captured so far.
	CapturedEdges() int

	// Edges returns the captured timestamps in arrival order.
	Edges() []uint16

	// OnTransmitComplete registers the transmit completion callback.
	OnTransmitComplete(func())

	// OnCaptureFull registers the callback fired when the edge buffer
	// fills before capture is stopped.
	OnCaptureFull(func())
}

// TickSource is a monotonic coarse tick counter used for response
// window timing. The count wraps; consumers subtract with unsigned
// arithmetic.
type TickSource interface {
	Ticks() uint32
}
