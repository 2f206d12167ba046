// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

import (
	"fmt"
	"sync"
)

// Config sets the protocol parameters for an Engine. Zero fields take
// the package defaults.
type Config struct {
	Speed        Speed
	TimerClockHz uint32
	MotorPoles   int

	// ResponseDelayTicks is how many coarse ticks to wait after a frame
	// completes before switching the line to input and arming capture.
	ResponseDelayTicks uint32

	// ResponseTimeoutTicks bounds the Receiving phase. When it elapses
	// the edges captured so far are handed to the decoder.
	ResponseTimeoutTicks uint32
}

func (c *Config) applyDefaults() {
	if c.Speed == 0 {
		c.Speed = DefaultSpeed
	}
	if c.TimerClockHz == 0 {
		c.TimerClockHz = DefaultTimerClockHz
	}
	if c.MotorPoles == 0 {
		c.MotorPoles = DefaultMotorPoles
	}
	if c.ResponseDelayTicks == 0 {
		c.ResponseDelayTicks = DefaultResponseDelayTicks
	}
	if c.ResponseTimeoutTicks == 0 {
		c.ResponseTimeoutTicks = DefaultResponseTimeoutTicks
	}
}

// Engine owns the bidirectional protocol: frame transmission, the
// direction-switched response window, decoding, and the telemetry
// record. One operation is in flight at a time; sends while busy are
// dropped silently.
//
// Update must be invoked at a regular coarse cadence. It advances the
// time-based transitions and performs decodes, keeping the hardware
// completion callbacks down to bare state transitions so they stay safe
// to run from interrupt-like contexts.
type Engine struct {
	mu          sync.Mutex
	line        SignalLine
	clock       TickSource
	cfg         Config
	timerPeriod uint16
	decoder     *Decoder

	state      State
	telemStart uint32 // tick of TX completion, reset when capture arms
	telemetry  Telemetry
	newData    bool
}

// NewEngine configures the line and returns a ready engine in the Idle
// state with an invalid telemetry record.
func NewEngine(line SignalLine, clock TickSource, cfg Config) (*Engine, error) {
	if line == nil {
		return nil, fmt.Errorf("dshot: nil signal line")
	}
	if clock == nil {
		return nil, fmt.Errorf("dshot: nil tick source")
	}
	cfg.applyDefaults()
	if !cfg.Speed.Valid() {
		return nil, fmt.Errorf("dshot: unsupported speed %d", int(cfg.Speed))
	}
	if cfg.MotorPoles < 2 {
		return nil, fmt.Errorf("dshot: invalid motor pole count %d", cfg.MotorPoles)
	}
	timerPeriod := cfg.Speed.TimerPeriod(cfg.TimerClockHz)
	bitPeriod := cfg.Speed.TelemetryBitPeriod(cfg.TimerClockHz)
	if timerPeriod == 0 || bitPeriod == 0 {
		return nil, fmt.Errorf("dshot: timer clock %d Hz too slow for %s", cfg.TimerClockHz, cfg.Speed)
	}

	e := &Engine{
		line:        line,
		clock:       clock,
		cfg:         cfg,
		timerPeriod: timerPeriod,
		decoder:     NewDecoder(bitPeriod, cfg.MotorPoles),
		state:       StateIdle,
	}

	if err := line.Configure(LineConfig{TimerPeriod: timerPeriod}); err != nil {
		return nil, fmt.Errorf("dshot: line configuration failed: %w", err)
	}
	line.OnTransmitComplete(e.handleTransmitComplete)
	line.OnCaptureFull(e.handleCaptureFull)
	line.SwitchToOutput()

	return e, nil
}

// SendThrottle issues a throttle frame with telemetry requested. Values
// above ThrottleMax are clamped. Dropped silently unless the engine is
// Idle.
func (e *Engine) SendThrottle(throttle uint16) {
	e.send(NewThrottleFrame(throttle), true)
}

// SendCommand issues a special command. Out-of-range commands and sends
// while busy are dropped silently. Commands do not request telemetry,
// so the empty response window normally lands in the error counter.
func (e *Engine) SendCommand(cmd Command) {
	if cmd > CommandMax {
		return
	}
	e.send(NewCommandFrame(cmd), false)
}

func (e *Engine) send(f Frame, countFrame bool) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return
	}
	e.state = StateSending
	if countFrame {
		e.telemetry.FrameCount++
	}
	seq := f.DutySequence(e.timerPeriod)
	e.mu.Unlock()

	// Transmit runs outside the lock: completion may fire before it
	// returns, and the callback needs the lock for its transition.
	e.line.SwitchToOutput()
	if err := e.line.Transmit(seq); err != nil {
		e.mu.Lock()
		e.state = StateIdle
		e.telemetry.ErrorCount++
		e.mu.Unlock()
	}
}

// Ready reports whether a new frame can be issued
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateIdle
}

// State returns the current protocol phase
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Telemetry returns a copy of the telemetry record. It is always
// readable; check Valid before using the derived fields.
func (e *Engine) Telemetry() Telemetry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.telemetry
}

// TelemetryAvailable reports and clears the new-data flag
func (e *Engine) TelemetryAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	available := e.newData
	e.newData = false
	return available
}

// Update advances the time-based state transitions and performs the
// decode step. Call it at the coarse tick cadence from the foreground.
func (e *Engine) Update() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Ticks()

	switch e.state {
	case StateAwaitingResponse:
		// Hold the line until the ESC's response window opens.
		if now-e.telemStart >= e.cfg.ResponseDelayTicks {
			e.line.SwitchToInput()
			e.line.ArmCapture()
			e.telemStart = now
			e.state = StateReceiving
		}

	case StateReceiving:
		if e.line.CapturedEdges() >= telemetryEdgeTarget || now-e.telemStart >= e.cfg.ResponseTimeoutTicks {
			e.line.StopCapture()
			e.state = StateDecoding
		}

	case StateDecoding:
		e.finishCycle(now)
	}
}

// finishCycle decodes the captured response, updates the telemetry
// record and returns the line to output mode. Called with mu held.
func (e *Engine) finishCycle(now uint32) {
	res, err := e.decoder.Decode(e.line.Edges())
	if err != nil {
		e.telemetry.ErrorCount++
	} else {
		e.telemetry.PeriodMicros = res.PeriodMicros
		e.telemetry.ERPM = res.ERPM
		e.telemetry.RPM = res.RPM
		e.telemetry.Valid = true
		e.telemetry.SuccessCount++
		e.telemetry.LastUpdate = now
		e.newData = true
	}
	e.line.SwitchToOutput()
	e.state = StateIdle
}

// handleTransmitComplete is registered as the line's transmit callback.
// It only records the completion time and transitions the state.
func (e *Engine) handleTransmitComplete() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSending {
		return
	}
	e.telemStart = e.clock.Ticks()
	e.state = StateAwaitingResponse
}

// handleCaptureFull is registered as the line's buffer-full callback.
// A full buffer means the response is over; decode on the next Update.
func (e *Engine) handleCaptureFull() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReceiving {
		return
	}
	e.line.StopCapture()
	e.state = StateDecoding
}
