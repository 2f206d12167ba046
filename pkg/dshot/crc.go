// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package dshot

// Checksum computes the 4-bit frame checksum: the XOR of the three
// nibbles of a 12-bit value. The same sum covers outgoing packets
// (value plus telemetry bit) and the period field of decoded responses.
func Checksum(value uint16) uint8 {
	return uint8((value ^ (value >> 4) ^ (value >> 8)) & 0x0F)
}
