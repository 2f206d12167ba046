// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

import (
	"errors"
	"testing"
)

// fakeLine is a scripted SignalLine. Completion callbacks fire only
// when the test invokes them, so every transition is observable.
type fakeLine struct {
	config       LineConfig
	configureErr error
	transmitErr  error

	inputMode bool
	capturing bool
	transmits [][]uint16

	// pendingEdges are loaded into the capture buffer when ArmCapture
	// runs, standing in for the ESC's response.
	pendingEdges []uint16
	edges        []uint16

	onTransmitComplete func()
	onCaptureFull      func()
}

func (l *fakeLine) Configure(cfg LineConfig) error {
	l.config = cfg
	return l.configureErr
}

func (l *fakeLine) SwitchToOutput() { l.inputMode = false }
func (l *fakeLine) SwitchToInput()  { l.inputMode = true }

func (l *fakeLine) Transmit(seq []uint16) error {
	if l.transmitErr != nil {
		return l.transmitErr
	}
	l.transmits = append(l.transmits, append([]uint16(nil), seq...))
	return nil
}

func (l *fakeLine) ArmCapture() {
	l.capturing = true
	l.edges = append([]uint16(nil), l.pendingEdges...)
}

func (l *fakeLine) StopCapture()       { l.capturing = false }
func (l *fakeLine) CapturedEdges() int { return len(l.edges) }
func (l *fakeLine) Edges() []uint16    { return l.edges }

func (l *fakeLine) OnTransmitComplete(fn func()) { l.onTransmitComplete = fn }
func (l *fakeLine) OnCaptureFull(fn func())      { l.onCaptureFull = fn }

func (l *fakeLine) fireTransmitComplete() {
	if l.onTransmitComplete != nil {
		l.onTransmitComplete()
	}
}

func (l *fakeLine) fireCaptureFull() {
	if l.onCaptureFull != nil {
		l.onCaptureFull()
	}
}

type fakeTicks struct {
	now uint32
}

func (c *fakeTicks) Ticks() uint32 { return c.now }

func newTestEngine(t *testing.T, line *fakeLine) (*Engine, *fakeTicks) {
	t.Helper()
	clock := &fakeTicks{now: 100}
	e, err := NewEngine(line, clock, Config{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e, clock
}

// runResponseWindow walks one in-flight frame through completion, the
// response delay, the receive timeout and the decode step.
func runResponseWindow(e *Engine, line *fakeLine, clock *fakeTicks) {
	line.fireTransmitComplete()
	clock.now += DefaultResponseDelayTicks
	e.Update() // switch to input, arm capture
	clock.now += DefaultResponseTimeoutTicks
	e.Update() // receive window over
	e.Update() // decode
}

// ============================================================
// Constructor Tests
// ============================================================

func TestNewEngine_Validation(t *testing.T) {
	clock := &fakeTicks{}

	if _, err := NewEngine(nil, clock, Config{}); err == nil {
		t.Error("nil line should be rejected")
	}
	if _, err := NewEngine(&fakeLine{}, nil, Config{}); err == nil {
		t.Error("nil tick source should be rejected")
	}
	if _, err := NewEngine(&fakeLine{}, clock, Config{Speed: 700}); err == nil {
		t.Error("unsupported speed should be rejected")
	}
	if _, err := NewEngine(&fakeLine{}, clock, Config{MotorPoles: 1}); err == nil {
		t.Error("pole count below 2 should be rejected")
	}

	line := &fakeLine{configureErr: errors.New("timer busy")}
	if _, err := NewEngine(line, clock, Config{}); err == nil {
		t.Error("line configuration failure should propagate")
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	line := &fakeLine{}
	e, _ := newTestEngine(t, line)

	// DSHOT600 at 168MHz: 280-tick bit timer.
	if line.config.TimerPeriod != 280 {
		t.Errorf("configured timer period = %d, expected 280", line.config.TimerPeriod)
	}
	if line.inputMode {
		t.Error("line should start in output mode")
	}
	if e.State() != StateIdle {
		t.Errorf("initial state = %s, expected IDLE", e.State())
	}
	if !e.Ready() {
		t.Error("new engine should be ready")
	}
	if e.Telemetry().Valid {
		t.Error("initial telemetry record should be invalid")
	}
}

// ============================================================
// Protocol Cycle Tests
// ============================================================

func TestEngine_SuccessfulCycle(t *testing.T) {
	line := &fakeLine{}
	e, clock := newTestEngine(t, line)
	line.pendingEdges = buildTelemetryEdges(t, 0x3201, 0, telemBitPeriod)

	e.SendThrottle(1046)
	if e.State() != StateSending {
		t.Fatalf("state after send = %s, expected SENDING", e.State())
	}
	if len(line.transmits) != 1 {
		t.Fatalf("transmit count = %d, expected 1", len(line.transmits))
	}
	if len(line.transmits[0]) != FrameBits+1 {
		t.Errorf("duty sequence length = %d, expected %d", len(line.transmits[0]), FrameBits+1)
	}

	line.fireTransmitComplete()
	if e.State() != StateAwaitingResponse {
		t.Fatalf("state after completion = %s, expected AWAITING_RESPONSE", e.State())
	}

	// The response window has not opened yet.
	e.Update()
	if e.State() != StateAwaitingResponse {
		t.Fatalf("state before delay elapsed = %s, expected AWAITING_RESPONSE", e.State())
	}

	clock.now += DefaultResponseDelayTicks
	e.Update()
	if e.State() != StateReceiving {
		t.Fatalf("state after delay = %s, expected RECEIVING", e.State())
	}
	if !line.inputMode {
		t.Error("line should be in input mode while receiving")
	}
	if !line.capturing {
		t.Error("capture should be armed while receiving")
	}

	clock.now += DefaultResponseTimeoutTicks
	e.Update()
	if e.State() != StateDecoding {
		t.Fatalf("state after timeout = %s, expected DECODING", e.State())
	}
	if line.capturing {
		t.Error("capture should be stopped before decoding")
	}

	e.Update()
	if e.State() != StateIdle {
		t.Fatalf("state after decode = %s, expected IDLE", e.State())
	}
	if line.inputMode {
		t.Error("line should be back in output mode")
	}

	telem := e.Telemetry()
	if !telem.Valid {
		t.Fatal("telemetry should be valid after a good response")
	}
	if telem.PeriodMicros != 800 || telem.ERPM != 75000 || telem.RPM != 10714 {
		t.Errorf("telemetry = {%d %d %d}, expected {800 75000 10714}",
			telem.PeriodMicros, telem.ERPM, telem.RPM)
	}
	if telem.FrameCount != 1 || telem.SuccessCount != 1 || telem.ErrorCount != 0 {
		t.Errorf("counters = %d/%d/%d, expected 1/1/0",
			telem.FrameCount, telem.SuccessCount, telem.ErrorCount)
	}
	if telem.LastUpdate != clock.now {
		t.Errorf("LastUpdate = %d, expected %d", telem.LastUpdate, clock.now)
	}

	if !e.TelemetryAvailable() {
		t.Error("TelemetryAvailable should report the new record")
	}
	if e.TelemetryAvailable() {
		t.Error("TelemetryAvailable should clear after reading")
	}
}

func TestEngine_ConsecutiveCycles(t *testing.T) {
	line := &fakeLine{}
	e, clock := newTestEngine(t, line)

	line.pendingEdges = buildTelemetryEdges(t, 0x3201, 0, telemBitPeriod)
	e.SendThrottle(1046)
	runResponseWindow(e, line, clock)

	// Motor winds down to a stop before the second frame.
	line.pendingEdges = buildTelemetryEdges(t, 0x0000, 0, telemBitPeriod)
	e.SendThrottle(ThrottleMin)
	runResponseWindow(e, line, clock)

	telem := e.Telemetry()
	if telem.FrameCount != 2 || telem.SuccessCount != 2 || telem.ErrorCount != 0 {
		t.Errorf("counters = %d/%d/%d, expected 2/2/0",
			telem.FrameCount, telem.SuccessCount, telem.ErrorCount)
	}
	if !telem.Valid || telem.RPM != 0 || telem.PeriodMicros != 0 {
		t.Errorf("second response should report a stopped motor, got {%d %d valid=%v}",
			telem.PeriodMicros, telem.RPM, telem.Valid)
	}
	if telem.SuccessRate() != 100.0 {
		t.Errorf("SuccessRate = %f, expected 100.0", telem.SuccessRate())
	}
}

func TestEngine_CaptureFullShortCircuit(t *testing.T) {
	line := &fakeLine{}
	e, clock := newTestEngine(t, line)
	line.pendingEdges = buildTelemetryEdges(t, 0x3201, 0, telemBitPeriod)

	e.SendThrottle(1046)
	line.fireTransmitComplete()
	clock.now += DefaultResponseDelayTicks
	e.Update()
	if e.State() != StateReceiving {
		t.Fatalf("state = %s, expected RECEIVING", e.State())
	}

	// The capture buffer fills before the timeout.
	line.fireCaptureFull()
	if e.State() != StateDecoding {
		t.Fatalf("state after buffer full = %s, expected DECODING", e.State())
	}
	if line.capturing {
		t.Error("capture should be stopped by the buffer-full handler")
	}

	e.Update()
	if telem := e.Telemetry(); !telem.Valid || telem.SuccessCount != 1 {
		t.Errorf("telemetry after short-circuit decode: valid=%v success=%d",
			telem.Valid, telem.SuccessCount)
	}
}

// ============================================================
// Drop And Error Path Tests
// ============================================================

func TestEngine_BusySendDropped(t *testing.T) {
	line := &fakeLine{}
	e, _ := newTestEngine(t, line)

	e.SendThrottle(1000)
	if e.Ready() {
		t.Error("engine should not be ready mid-cycle")
	}

	e.SendThrottle(1200)
	e.SendCommand(CmdBeep1)

	if len(line.transmits) != 1 {
		t.Errorf("transmit count = %d, expected 1 (busy sends dropped)", len(line.transmits))
	}
	if telem := e.Telemetry(); telem.FrameCount != 1 {
		t.Errorf("FrameCount = %d, expected 1", telem.FrameCount)
	}
}

func TestEngine_CommandCycle(t *testing.T) {
	line := &fakeLine{} // no pending edges: commands get no response
	e, clock := newTestEngine(t, line)

	e.SendCommand(CmdBeep1)
	if len(line.transmits) != 1 {
		t.Fatalf("transmit count = %d, expected 1", len(line.transmits))
	}
	runResponseWindow(e, line, clock)

	// The empty response window counts as an error, but commands are
	// not telemetry frames.
	telem := e.Telemetry()
	if telem.FrameCount != 0 {
		t.Errorf("FrameCount = %d, expected 0 for commands", telem.FrameCount)
	}
	if telem.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, expected 1", telem.ErrorCount)
	}
	if telem.Valid {
		t.Error("telemetry should stay invalid")
	}
	if e.State() != StateIdle {
		t.Errorf("state = %s, expected IDLE", e.State())
	}
}

func TestEngine_OutOfRangeCommandDropped(t *testing.T) {
	line := &fakeLine{}
	e, _ := newTestEngine(t, line)

	e.SendCommand(Command(48))
	if len(line.transmits) != 0 {
		t.Error("out-of-range command should not transmit")
	}
	if !e.Ready() {
		t.Error("engine should stay idle")
	}
}

func TestEngine_CorruptedResponse(t *testing.T) {
	line := &fakeLine{}
	e, clock := newTestEngine(t, line)
	line.pendingEdges = buildTelemetryEdges(t, 0x3200, 0, telemBitPeriod) // bad checksum

	e.SendThrottle(1046)
	runResponseWindow(e, line, clock)

	telem := e.Telemetry()
	if telem.Valid {
		t.Error("corrupted response should not validate telemetry")
	}
	if telem.FrameCount != 1 || telem.SuccessCount != 0 || telem.ErrorCount != 1 {
		t.Errorf("counters = %d/%d/%d, expected 1/0/1",
			telem.FrameCount, telem.SuccessCount, telem.ErrorCount)
	}
	if e.TelemetryAvailable() {
		t.Error("no new data should be flagged for a failed decode")
	}
	if e.State() != StateIdle {
		t.Errorf("state = %s, expected IDLE", e.State())
	}
	if line.inputMode {
		t.Error("line should be restored to output mode after a failure")
	}
}

func TestEngine_TransmitError(t *testing.T) {
	line := &fakeLine{transmitErr: errors.New("dma busy")}
	e, _ := newTestEngine(t, line)

	e.SendThrottle(1046)
	if e.State() != StateIdle {
		t.Errorf("state after transmit failure = %s, expected IDLE", e.State())
	}
	telem := e.Telemetry()
	if telem.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, expected 1", telem.ErrorCount)
	}
	if !e.Ready() {
		t.Error("engine should recover to ready after a transmit failure")
	}
}

func TestEngine_CallbacksIgnoredWhenIdle(t *testing.T) {
	line := &fakeLine{}
	e, _ := newTestEngine(t, line)

	line.fireTransmitComplete()
	line.fireCaptureFull()

	if e.State() != StateIdle {
		t.Errorf("state = %s, expected IDLE (stray callbacks ignored)", e.State())
	}
	if telem := e.Telemetry(); telem.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, expected 0", telem.ErrorCount)
	}
}
