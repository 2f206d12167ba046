// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package esctelem

import (
	"errors"
	"fmt"
	"time"
)

// Sanity bounds for anomaly flagging. Values past these are recorded
// but the reading is still delivered.
const (
	maxPlausibleTemp    = 150   // degrees C
	maxPlausibleCurrent = 20000 // 0.01A units, 200A
)

// Stats tracks packet statistics and error rates for a telemetry stream
type Stats struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets    uint64
	ValidPackets    uint64
	CRCErrors       uint64
	AnomalousValues uint64
	HighTemperature uint64
	HighCurrent     uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStats creates a new statistics tracker
func NewStats() *Stats {
	now := time.Now()
	return &Stats{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one decode outcome
func (s *Stats) Update(r *Reading, decodeErr error) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrCRCMismatch) {
			s.CRCErrors++
		}
		return
	}
	if r == nil {
		return
	}

	s.ValidPackets++
	if r.temperature > maxPlausibleTemp {
		s.HighTemperature++
		s.AnomalousValues++
	}
	if r.current > maxPlausibleCurrent {
		s.HighCurrent++
		s.AnomalousValues++
	}
}

// CalculateRates calculates packet and error rates
func (s *Stats) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.CRCErrors+s.AnomalousValues) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Stats) String() string {
	s.CalculateRates()

	var validPercent, crcPercent float64
	if s.TotalPackets > 0 {
		validPercent = float64(s.ValidPackets) * 100.0 / float64(s.TotalPackets)
		crcPercent = float64(s.CRCErrors) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Telemetry Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, validPercent)
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, crcPercent)
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d\n", s.AnomalousValues)
		if s.HighTemperature > 0 {
			result += fmt.Sprintf("  High Temp (>%d°C): %5d\n", maxPlausibleTemp, s.HighTemperature)
		}
		if s.HighCurrent > 0 {
			result += fmt.Sprintf("  High Current:       %5d\n", s.HighCurrent)
		}
	}
	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "==========================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Stats) Reset() {
	now := time.Now()
	*s = Stats{StartTime: now, LastUpdateTime: now}
}
