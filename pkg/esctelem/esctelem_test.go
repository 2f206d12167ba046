// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package esctelem

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// encodePacket builds a wire packet from raw field values.
func encodePacket(temp uint8, voltage, current, consumption, erpm uint16) []byte {
	p := []byte{
		temp,
		byte(voltage >> 8), byte(voltage),
		byte(current >> 8), byte(current),
		byte(consumption >> 8), byte(consumption),
		byte(erpm >> 8), byte(erpm),
	}
	return append(p, CalculateCRC(p))
}

func feedPacket(t *testing.T, d *Decoder, packet []byte) *Reading {
	t.Helper()
	var reading *Reading
	for i, b := range packet {
		r, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("byte %d: unexpected error: %v", i, err)
		}
		if r != nil {
			reading = r
		}
	}
	return reading
}

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint8
	}{
		{"empty", []byte{}, 0x00},
		{"single zero", []byte{0x00}, 0x00},
		{"single one", []byte{0x01}, 0xD5},
		{"high bit", []byte{0x80}, 0xEF},
		{"two bytes", []byte{0x01, 0x00}, 0x0B},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if crc := CalculateCRC(tt.data); crc != tt.expected {
				t.Errorf("CalculateCRC(%v) = 0x%02X, expected 0x%02X", tt.data, crc, tt.expected)
			}
		})
	}
}

func TestCalculateCRC_DetectsSingleBitErrors(t *testing.T) {
	packet := encodePacket(32, 1480, 1250, 2100, 1203)
	original := CalculateCRC(packet[:PacketSize-1])

	for byteIdx := 0; byteIdx < PacketSize-1; byteIdx++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte(nil), packet[:PacketSize-1]...)
			corrupted[byteIdx] ^= 1 << uint(bit)
			if CalculateCRC(corrupted) == original {
				t.Errorf("bit flip at byte %d bit %d not detected", byteIdx, bit)
			}
		}
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_ParsesPacket(t *testing.T) {
	// 32°C, 14.80V, 12.50A, 2100mAh, eRPM 120300.
	packet := encodePacket(32, 1480, 1250, 2100, 1203)

	d := NewDecoder()
	reading := feedPacket(t, d, packet)
	if reading == nil {
		t.Fatal("complete packet produced no reading")
	}

	if reading.Temperature() != 32 {
		t.Errorf("Temperature() = %d, expected 32", reading.Temperature())
	}
	if reading.Voltage() != 14.80 {
		t.Errorf("Voltage() = %.2f, expected 14.80", reading.Voltage())
	}
	if reading.Current() != 12.50 {
		t.Errorf("Current() = %.2f, expected 12.50", reading.Current())
	}
	if reading.Consumption() != 2100 {
		t.Errorf("Consumption() = %d, expected 2100", reading.Consumption())
	}
	if reading.ERPM() != 120300 {
		t.Errorf("ERPM() = %d, expected 120300", reading.ERPM())
	}
	if reading.RPM(14) != 17185 {
		t.Errorf("RPM(14) = %d, expected 17185", reading.RPM(14))
	}
	if reading.Timestamp().IsZero() {
		t.Error("Timestamp() should be set")
	}
}

func TestDecoder_IncompletePacketYieldsNothing(t *testing.T) {
	packet := encodePacket(32, 1480, 1250, 2100, 1203)

	d := NewDecoder()
	for i, b := range packet[:PacketSize-1] {
		r, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("byte %d: unexpected error: %v", i, err)
		}
		if r != nil {
			t.Fatalf("byte %d: reading before packet complete", i)
		}
	}
}

func TestDecoder_RejectsBadCRC(t *testing.T) {
	packet := encodePacket(32, 1480, 1250, 2100, 1203)
	packet[2] ^= 0x40

	d := NewDecoder()
	var decodeErr error
	for _, b := range packet {
		r, err := d.DecodeByte(b)
		if r != nil {
			t.Fatal("corrupted packet produced a reading")
		}
		if err != nil {
			decodeErr = err
		}
	}
	if !errors.Is(decodeErr, ErrCRCMismatch) {
		t.Fatalf("decode error = %v, expected ErrCRCMismatch", decodeErr)
	}

	// The decoder recovers for the next packet.
	if r := feedPacket(t, d, encodePacket(30, 1480, 900, 2100, 1100)); r == nil {
		t.Error("decoder did not recover after a CRC failure")
	}
}

func TestDecoder_InterByteTimeout(t *testing.T) {
	d := NewDecoder()
	d.SetTimeout(time.Millisecond)

	// A stray burst that never completes.
	for _, b := range []byte{0xDE, 0xAD, 0xBE} {
		if _, err := d.DecodeByte(b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	time.Sleep(10 * time.Millisecond)

	// After the gap the stale bytes are dropped, so a fresh packet
	// aligns correctly.
	reading := feedPacket(t, d, encodePacket(32, 1480, 1250, 2100, 1203))
	if reading == nil {
		t.Fatal("decoder did not resynchronize after timeout")
	}
	if reading.Temperature() != 32 {
		t.Errorf("Temperature() = %d, expected 32", reading.Temperature())
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder()
	if _, err := d.DecodeByte(0xFF); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.Reset()

	if r := feedPacket(t, d, encodePacket(25, 1200, 0, 0, 0)); r == nil {
		t.Fatal("packet after Reset produced no reading")
	}
}

// ============================================================
// Reading Tests
// ============================================================

func TestReading_RPMPoleGuard(t *testing.T) {
	r := &Reading{erpm: 1203}
	if r.RPM(0) != 0 || r.RPM(1) != 0 {
		t.Error("RPM with a bad pole count should be 0")
	}
	if r.RPM(2) != 120300 {
		t.Errorf("RPM(2) = %d, expected 120300", r.RPM(2))
	}
}

func TestReading_String(t *testing.T) {
	r := &Reading{temperature: 32, voltage: 1480, current: 1250, consumption: 2100, erpm: 1203}
	s := r.String()
	for _, want := range []string{"32°C", "14.80V", "12.50A", "2100 mAh", "120300"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

// ============================================================
// Stats Tests
// ============================================================

func TestStats_Update(t *testing.T) {
	s := NewStats()

	s.Update(&Reading{temperature: 40, current: 1000}, nil)
	s.Update(nil, ErrCRCMismatch)
	s.Update(&Reading{temperature: 200, current: 30000}, nil)

	if s.TotalPackets != 3 {
		t.Errorf("TotalPackets = %d, expected 3", s.TotalPackets)
	}
	if s.ValidPackets != 2 {
		t.Errorf("ValidPackets = %d, expected 2", s.ValidPackets)
	}
	if s.CRCErrors != 1 {
		t.Errorf("CRCErrors = %d, expected 1", s.CRCErrors)
	}
	if s.HighTemperature != 1 || s.HighCurrent != 1 || s.AnomalousValues != 2 {
		t.Errorf("anomalies = %d/%d/%d, expected 1/1/2",
			s.HighTemperature, s.HighCurrent, s.AnomalousValues)
	}

	summary := s.String()
	if !strings.Contains(summary, "Total Packets") {
		t.Errorf("String() missing counters: %q", summary)
	}

	s.Reset()
	if s.TotalPackets != 0 || s.CRCErrors != 0 {
		t.Error("Reset should zero the counters")
	}
}

// ============================================================
// Source Tests
// ============================================================

func TestSource_DeliversReadings(t *testing.T) {
	pr, pw := io.Pipe()
	src := NewSource(pr)

	if src.Latest() != nil {
		t.Error("Latest() should be nil before any packet")
	}

	if _, err := pw.Write(encodePacket(32, 1480, 1250, 2100, 1203)); err != nil {
		t.Fatalf("pipe write failed: %v", err)
	}

	deadline := time.After(time.Second)
	for src.Latest() == nil {
		select {
		case <-deadline:
			t.Fatal("no reading delivered")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if !src.Available() {
		t.Error("Available() should report the new reading")
	}
	if src.Available() {
		t.Error("Available() should clear after reading")
	}
	if got := src.Latest().ERPM(); got != 120300 {
		t.Errorf("Latest().ERPM() = %d, expected 120300", got)
	}
	if stats := src.Stats(); stats.ValidPackets != 1 {
		t.Errorf("ValidPackets = %d, expected 1", stats.ValidPackets)
	}

	pw.Close()
	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Fatal("source did not stop on stream close")
	}
}
