// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package esctelem

import (
	"io"
	"sync"
)

// Source drains a telemetry byte stream in the background and keeps the
// latest valid reading, mirroring the poll-and-clear access pattern the
// protocol engine exposes for eRPM telemetry.
type Source struct {
	mu      sync.Mutex
	latest  *Reading
	newData bool
	stats   *Stats

	done chan struct{}
}

// NewSource starts draining r. The reader goroutine exits when r
// returns an error, normally because the caller closed the port.
func NewSource(r io.Reader) *Source {
	s := &Source{
		stats: NewStats(),
		done:  make(chan struct{}),
	}
	go s.run(r)
	return s
}

func (s *Source) run(r io.Reader) {
	defer close(s.done)
	dec := NewDecoder()
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			reading, decErr := dec.DecodeByte(b)
			if reading == nil && decErr == nil {
				continue
			}
			s.mu.Lock()
			s.stats.Update(reading, decErr)
			if reading != nil {
				s.latest = reading
				s.newData = true
			}
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Latest returns the most recent valid reading, or nil before the
// first packet arrives.
func (s *Source) Latest() *Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Available reports and clears the new-data flag
func (s *Source) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	available := s.newData
	s.newData = false
	return available
}

// Stats returns a snapshot of the stream statistics
func (s *Source) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.stats
}

// Done is closed when the reader goroutine exits
func (s *Source) Done() <-chan struct{} {
	return s.done
}
