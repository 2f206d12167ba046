// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"io"
	"time"

	"github.com/deflucaseng/BiDShot/pkg/esctelem"
)

// TelemetrySample is a uniform snapshot across the two telemetry
// paths: the bidirectional DSHOT response and the KISS serial stream.
// The power fields are only present on the serial path.
type TelemetrySample struct {
	Source       string
	RPM          uint32
	ERPM         uint32
	PeriodMicros uint16
	Valid        bool

	Temperature uint8
	Voltage     float64
	Current     float64
	Consumption uint16
	HasPower    bool
}

// TelemetrySource delivers telemetry snapshots for publishing.
type TelemetrySource interface {
	// Sample returns the latest snapshot and whether it is new since
	// the previous call.
	Sample() (TelemetrySample, bool)
	io.Closer
}

// openTelemetrySource picks the serial stream when a connection is
// configured, otherwise spins up a simulated ESC at a fixed throttle.
func openTelemetrySource(simThrottle uint16, maxRPM uint32) (TelemetrySource, string, error) {
	if portName != "" || wsURL != "" {
		conn, connInfo, err := OpenConnection()
		if err != nil {
			return nil, "", err
		}
		return newSerialSource(conn), connInfo, nil
	}

	src, info, err := newEngineSource(simThrottle, maxRPM)
	if err != nil {
		return nil, "", err
	}
	return src, info, nil
}

// engineSource runs the protocol loop against a simulated ESC and
// samples the engine's telemetry record.
type engineSource struct {
	rig  *escRig
	done chan struct{}
}

func newEngineSource(throttle uint16, maxRPM uint32) (*engineSource, string, error) {
	rig, info, err := openESCRig(maxRPM)
	if err != nil {
		return nil, "", err
	}

	s := &engineSource{rig: rig, done: make(chan struct{})}
	go s.run(throttle)
	return s, info, nil
}

func (s *engineSource) run(throttle uint16) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	sinceFrame := 0
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.rig.eng.Update()
			sinceFrame++
			if sinceFrame >= 20 {
				sinceFrame = 0
				if s.rig.eng.Ready() {
					s.rig.eng.SendThrottle(throttle)
				}
			}
		}
	}
}

func (s *engineSource) Sample() (TelemetrySample, bool) {
	telem := s.rig.eng.Telemetry()
	fresh := s.rig.eng.TelemetryAvailable()
	return TelemetrySample{
		Source:       "dshot",
		RPM:          telem.RPM,
		ERPM:         telem.ERPM,
		PeriodMicros: telem.PeriodMicros,
		Valid:        telem.Valid,
	}, fresh
}

func (s *engineSource) Close() error {
	close(s.done)
	return nil
}

// serialSource decodes the KISS stream arriving on a connection.
type serialSource struct {
	conn Connection
	src  *esctelem.Source
}

func newSerialSource(conn Connection) *serialSource {
	return &serialSource{conn: conn, src: esctelem.NewSource(conn)}
}

func (s *serialSource) Sample() (TelemetrySample, bool) {
	fresh := s.src.Available()
	r := s.src.Latest()
	if r == nil {
		return TelemetrySample{Source: "serial"}, false
	}
	return TelemetrySample{
		Source:      "serial",
		RPM:         r.RPM(motorPoles),
		ERPM:        r.ERPM(),
		Valid:       true,
		Temperature: r.Temperature(),
		Voltage:     r.Voltage(),
		Current:     r.Current(),
		Consumption: r.Consumption(),
		HasPower:    true,
	}, fresh
}

func (s *serialSource) Close() error {
	return s.conn.Close()
}
