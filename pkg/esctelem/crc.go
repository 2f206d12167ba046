// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package esctelem

// crcPoly is the CRC-8 polynomial KISS and BLHeli_32 ESCs use for the
// serial telemetry packet.
const crcPoly = 0xD5

// CalculateCRC computes the packet CRC-8: zero start value, MSB first.
func CalculateCRC(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		crc ^= b
		for j := 0; j < 8; j++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
