// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package escsim

// motor is a first-order response model: each step moves the speed a
// fixed fraction of the way to the target, which is roughly how a prop
// load behaves at the frame rates the protocol runs at.
type motor struct {
	rpm    float64
	target float64
	rate   float64
}

func (m *motor) setTarget(rpm float64) {
	m.target = rpm
}

func (m *motor) step() {
	m.rpm += (m.target - m.rpm) * m.rate
	if m.rpm < 0 {
		m.rpm = 0
	}
}

func (m *motor) speed() float64 {
	return m.rpm
}
