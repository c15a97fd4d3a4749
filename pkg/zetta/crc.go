// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

// Checksum computes the CRC-8 checksum for the given data
// (polynomial 0x07, initial value 0xFF, no reflection, no final XOR)
func Checksum(data []byte) uint8 {
	crc := uint8(crcInitial)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
