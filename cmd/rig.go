// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/dshot"
	"github.com/deflucaseng/BiDShot/pkg/escsim"
)

// escRig bundles a protocol engine with the virtual ESC on the other
// end of the line. Commands that exercise the bidirectional link run
// against a rig: the engine encodes and transmits real duty sequences,
// the simulator answers with GCR-encoded edge timestamps, and the
// engine decodes them back into telemetry.
type escRig struct {
	eng   *dshot.Engine
	sim   *escsim.ESC
	clock *escsim.Clock
	speed dshot.Speed
	poles int
}

// rigJitterTicks displaces simulated response edges to keep the decode
// path honest. Well under half a telemetry bit period at every speed.
const rigJitterTicks = 8

// openESCRig builds a rig from the persistent protocol flags.
func openESCRig(maxRPM uint32) (*escRig, string, error) {
	speed, err := selectedSpeed()
	if err != nil {
		return nil, "", err
	}
	if motorPoles < 2 {
		return nil, "", fmt.Errorf("invalid pole count: %d", motorPoles)
	}

	sim := escsim.New(escsim.Config{
		Speed:       speed,
		MotorPoles:  motorPoles,
		MaxRPM:      maxRPM,
		JitterTicks: rigJitterTicks,
	})
	clock := escsim.NewClock()

	eng, err := dshot.NewEngine(sim, clock, dshot.Config{
		Speed:      speed,
		MotorPoles: motorPoles,
	})
	if err != nil {
		return nil, "", err
	}

	rig := &escRig{eng: eng, sim: sim, clock: clock, speed: speed, poles: motorPoles}
	info := fmt.Sprintf("Simulated ESC: DSHOT%d, %d poles, %d max RPM", speed, motorPoles, maxRPM)
	return rig, info, nil
}

// pump services the engine state machine for the given wall duration.
// The response delay and timeout are measured in millisecond ticks, so
// a 1ms cadence walks every cycle through to completion.
func (r *escRig) pump(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		r.eng.Update()
		time.Sleep(time.Millisecond)
	}
	r.eng.Update()
}

// armSequence wakes the ESC the way flight controllers do: a second of
// zero-throttle frames, a burst of beeps, then a settle pause.
func (r *escRig) armSequence() {
	for i := 0; i < 100; i++ {
		r.eng.SendThrottle(0)
		r.pump(10 * time.Millisecond)
	}
	for i := 0; i < 10; i++ {
		r.eng.SendCommand(dshot.CmdBeep1)
		r.pump(10 * time.Millisecond)
	}
	r.pump(500 * time.Millisecond)
}
