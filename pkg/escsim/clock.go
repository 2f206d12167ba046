// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package escsim

import "time"

// Clock is a dshot.TickSource counting milliseconds since creation,
// matching the coarse tick the engine's delay and timeout settings
// assume.
type Clock struct {
	start time.Time
}

// NewClock starts a millisecond tick source
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// Ticks returns elapsed milliseconds. Wrapping is harmless: the engine
// only looks at differences.
func (c *Clock) Ticks() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}
