// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

// Package escsim provides a virtual ESC that implements dshot.SignalLine.
//
// The simulator parses transmitted duty sequences back into frames,
// runs a first-order motor model, and answers telemetry requests with
// GCR-encoded edge timestamps, so the full protocol engine can run
// against it without hardware.
package escsim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/dshot"
)

// Config sets up a virtual ESC. Zero fields take defaults.
type Config struct {
	Speed        dshot.Speed
	TimerClockHz uint32
	MotorPoles   int

	// MaxRPM is the mechanical speed reached at full throttle.
	MaxRPM uint32

	// SpinUpRate is the fraction of the remaining speed delta the motor
	// gains per received frame, in (0, 1].
	SpinUpRate float64

	// JitterTicks displaces each response edge by a uniform random
	// offset in [-JitterTicks, +JitterTicks].
	JitterTicks int
	Seed        int64

	// Synchronous makes Transmit process the frame and fire the
	// completion callback inline instead of from a goroutine. Tests use
	// this for deterministic single-step cycles.
	Synchronous bool
}

func (c *Config) applyDefaults() {
	if c.Speed == 0 {
		c.Speed = dshot.DefaultSpeed
	}
	if c.TimerClockHz == 0 {
		c.TimerClockHz = dshot.DefaultTimerClockHz
	}
	if c.MotorPoles == 0 {
		c.MotorPoles = dshot.DefaultMotorPoles
	}
	if c.MaxRPM == 0 {
		c.MaxRPM = 15000
	}
	if c.SpinUpRate <= 0 || c.SpinUpRate > 1 {
		c.SpinUpRate = 0.25
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// ESC is a software ESC on the other end of the signal line.
type ESC struct {
	mu  sync.Mutex
	cfg Config

	timerPeriod   uint16 // host bit timer, learned from Configure
	bitPeriod     uint16 // telemetry response bit period in ticks
	frameDuration time.Duration
	rng           *rand.Rand

	inputMode bool // host direction: true while the host listens
	capturing bool
	edges     []uint16
	response  []uint16 // armed capture picks this up
	nextStamp uint16

	onTransmitComplete func()
	onCaptureFull      func()

	motor motor

	throttle    uint16
	beeps       int
	direction   int
	mode3D      bool
	edt         bool
	repeatCmd   dshot.Command
	repeatCount int

	framesReceived uint64
	badFrames      uint64
}

var _ dshot.SignalLine = (*ESC)(nil)

// New creates a virtual ESC spinning direction 1 with the motor stopped.
func New(cfg Config) *ESC {
	cfg.applyDefaults()
	return &ESC{
		cfg:           cfg,
		bitPeriod:     cfg.Speed.TelemetryBitPeriod(cfg.TimerClockHz),
		frameDuration: time.Duration(dshot.FrameBits) * time.Second / time.Duration(cfg.Speed.BitRate()),
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		direction:     1,
		motor:         motor{rate: cfg.SpinUpRate},
	}
}

// ============================================================
// dshot.SignalLine
// ============================================================

// Configure records the host's bit timer period.
func (e *ESC) Configure(cfg dshot.LineConfig) error {
	if cfg.TimerPeriod == 0 {
		return fmt.Errorf("escsim: zero timer period")
	}
	e.mu.Lock()
	e.timerPeriod = cfg.TimerPeriod
	e.mu.Unlock()
	return nil
}

func (e *ESC) SwitchToOutput() {
	e.mu.Lock()
	e.inputMode = false
	e.mu.Unlock()
}

func (e *ESC) SwitchToInput() {
	e.mu.Lock()
	e.inputMode = true
	e.mu.Unlock()
}

// Transmit accepts one duty sequence. In synchronous mode the frame is
// parsed and the completion callback fired before Transmit returns; in
// asynchronous mode that happens after the frame's wire duration.
func (e *ESC) Transmit(seq []uint16) error {
	frame := append([]uint16(nil), seq...)
	if e.cfg.Synchronous {
		e.processFrame(frame)
		return nil
	}
	go func() {
		time.Sleep(e.frameDuration)
		e.processFrame(frame)
	}()
	return nil
}

// ArmCapture loads whatever response the last frame produced into the
// capture buffer. When no response is pending the buffer stays empty
// and the host's receive window times out, as on a silent line.
func (e *ESC) ArmCapture() {
	e.mu.Lock()
	e.capturing = true
	e.edges = e.response
	e.response = nil
	e.mu.Unlock()
}

func (e *ESC) StopCapture() {
	e.mu.Lock()
	e.capturing = false
	e.mu.Unlock()
}

func (e *ESC) CapturedEdges() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.edges)
}

func (e *ESC) Edges() []uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.edges
}

func (e *ESC) OnTransmitComplete(fn func()) {
	e.mu.Lock()
	e.onTransmitComplete = fn
	e.mu.Unlock()
}

func (e *ESC) OnCaptureFull(fn func()) {
	e.mu.Lock()
	e.onCaptureFull = fn
	e.mu.Unlock()
}

// ============================================================
// Frame handling
// ============================================================

// processFrame validates and applies one received frame, stages the
// telemetry response, and fires the completion callback. The callback
// runs after the lock is released so the host can re-enter the line.
func (e *ESC) processFrame(seq []uint16) {
	e.mu.Lock()

	frame, ok := parseDutySequence(seq, e.timerPeriod)
	if !ok || dshot.Checksum(frame>>4) != uint8(frame&0x0F) {
		e.badFrames++
	} else {
		e.applyFrame(frame)
	}

	done := e.onTransmitComplete
	e.mu.Unlock()

	if done != nil {
		done()
	}
}

// applyFrame dispatches a checksum-valid frame. Called with mu held.
func (e *ESC) applyFrame(frame uint16) {
	e.framesReceived++
	value := frame >> 5
	telem := frame>>4&1 == 1

	if value >= dshot.ThrottleMin {
		e.throttle = value
		e.motor.setTarget(float64(e.cfg.MaxRPM) * float64(value-dshot.ThrottleMin) /
			float64(dshot.ThrottleMax-dshot.ThrottleMin))
		e.repeatCount = 0
	} else {
		e.applyCommand(dshot.Command(value))
	}

	e.motor.step()
	if telem {
		e.response = e.buildResponse()
	}
}

// applyCommand tracks the observable effects of special commands. The
// extended-telemetry switches follow the repeat rule; everything else
// acts on first receipt.
func (e *ESC) applyCommand(cmd dshot.Command) {
	if cmd == e.repeatCmd {
		e.repeatCount++
	} else {
		e.repeatCmd = cmd
		e.repeatCount = 1
	}

	switch cmd {
	case dshot.CmdMotorStop:
		e.throttle = 0
		e.motor.setTarget(0)
	case dshot.CmdBeep1, dshot.CmdBeep2, dshot.CmdBeep3, dshot.CmdBeep4, dshot.CmdBeep5:
		e.beeps++
	case dshot.CmdSpinDirection1:
		e.direction = 1
	case dshot.CmdSpinDirection2:
		e.direction = 2
	case dshot.Cmd3DModeOff:
		e.mode3D = false
	case dshot.Cmd3DModeOn:
		e.mode3D = true
	case dshot.CmdExtendedTelemetryEnable:
		if e.repeatCount >= dshot.EDTRepeatCount {
			e.edt = true
		}
	case dshot.CmdExtendedTelemetryDisable:
		if e.repeatCount >= dshot.EDTRepeatCount {
			e.edt = false
		}
	}
}

// buildResponse encodes the motor's current eRPM period as capture
// timestamps. Called with mu held.
func (e *ESC) buildResponse() []uint16 {
	erpm := uint32(e.motor.speed()) * uint32(e.cfg.MotorPoles) / 2

	// Periods whose top nibble maps to a low-opening GCR symbol cannot
	// be framed by the host's run-length demodulation (the response
	// must open with a high run), and periods above 12 bits do not fit
	// the frame at all. Both report as a stopped motor, the same floor
	// behavior real ESCs show below their measurable speed range.
	var period uint16
	if erpm > 0 {
		if p := 60000000 / erpm; p <= 0x0FFF && framablePeriod(uint16(p)) {
			period = uint16(p)
		}
	}

	value := period<<4 | uint16(dshot.Checksum(period))
	edges := responseEdges(value, e.nextStamp, e.bitPeriod)

	// Arbitrary stride so capture windows sweep the whole counter
	// range, wrap included.
	e.nextStamp += 977

	if e.cfg.JitterTicks > 0 {
		for i := range edges {
			edges[i] += uint16(e.rng.Intn(2*e.cfg.JitterTicks+1) - e.cfg.JitterTicks)
		}
	}
	return edges
}

// parseDutySequence recovers the 16-bit frame from timer compare
// values. A '1' bit pulls the inverted line low for 75% of the period,
// a '0' for 37%, so the compare value sits below half the period
// exactly for '1' bits.
func parseDutySequence(seq []uint16, period uint16) (uint16, bool) {
	if len(seq) < dshot.FrameBits || period == 0 {
		return 0, false
	}
	var frame uint16
	for i := 0; i < dshot.FrameBits; i++ {
		frame <<= 1
		if uint32(seq[i])*2 < uint32(period) {
			frame |= 1
		}
	}
	return frame, true
}

// framablePeriod reports whether the host can demodulate a response
// carrying this period: the leading GCR symbol, drawn from the period's
// top nibble, must start with a '1' bit so the stream opens at the
// idle-high level.
func framablePeriod(period uint16) bool {
	return dshot.EncodeGCRSymbol(uint8(period>>8))&0x10 != 0
}

// responseEdges lays out the 20 GCR bits plus the trailing marker as
// level-run timestamps: one edge at the stream start, one at every
// level change, and one closing the final run.
func responseEdges(value uint16, start uint16, bitPeriod uint16) []uint16 {
	gcr := dshot.EncodeGCRFrame(value)
	bits := make([]uint8, 0, dshot.TelemetryFrameBits)
	for i := dshot.TelemetryNibbles*dshot.GCRBitsPerNibble - 1; i >= 0; i-- {
		bits = append(bits, uint8(gcr>>uint(i))&1)
	}
	bits = append(bits, bits[len(bits)-1]^1)

	edges := []uint16{start}
	pos := start
	run := uint16(0)
	for i := 0; i < len(bits); i++ {
		run++
		if i == len(bits)-1 || bits[i+1] != bits[i] {
			pos += run * bitPeriod
			edges = append(edges, pos)
			run = 0
		}
	}
	return edges
}

// ============================================================
// Inspection
// ============================================================

// Throttle returns the last accepted throttle value
func (e *ESC) Throttle() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.throttle
}

// RPM returns the motor model's current mechanical speed
func (e *ESC) RPM() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint32(e.motor.speed())
}

// Beeps returns how many beep commands the ESC has received
func (e *ESC) Beeps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.beeps
}

// Direction returns the configured spin direction, 1 or 2
func (e *ESC) Direction() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.direction
}

// Mode3D reports whether 3D mode is on
func (e *ESC) Mode3D() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode3D
}

// ExtendedTelemetry reports whether extended telemetry has been enabled
func (e *ESC) ExtendedTelemetry() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.edt
}

// FramesReceived returns the count of checksum-valid frames
func (e *ESC) FramesReceived() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.framesReceived
}

// BadFrames returns the count of frames dropped for bad checksums
func (e *ESC) BadFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.badFrames
}
