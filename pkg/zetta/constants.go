// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

// Package zetta implements the Zetta serial packet protocol.
//
// Zetta is a lightweight framed protocol for exchanging small packets with
// embedded devices over a raw byte stream such as a UART. This package
// provides frame encoding/decoding, CRC validation, a pluggable codec
// registry, and a background receive loop feeding a packet queue.
package zetta

// Protocol framing bytes
const (
	StartByte = 0xAA
	StopByte  = 0xBC
)

// Frame size limits
const (
	MaxPayloadSize = 25
	FrameOverhead  = 5 // start + type + length + crc + stop
	MaxFrameSize   = MaxPayloadSize + FrameOverhead
)

// CRC-8 configuration
const (
	crcPolynomial = 0x07
	crcInitial    = 0xFF
)

// Well-known packet types. The protocol itself does not restrict type
// codes: any byte value is a valid type, registered or not.
const (
	MsgAck       = 0x00
	MsgPublish   = 0x01
	MsgSubscribe = 0x02
)
