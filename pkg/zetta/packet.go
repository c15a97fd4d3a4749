// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import "time"

// Packet represents a decoded Zetta protocol packet. Packets are immutable
// once constructed: the decoder builds one per validated frame and hands it
// to the delivery queue.
type Packet struct {
	msgType   uint8
	payload   []byte
	timestamp time.Time
	rawFrame  []byte
}

// NewPacket creates a packet with the given type and payload, timestamped
// now. The rawFrame holds the original wire bytes for debugging.
func NewPacket(msgType uint8, payload, rawFrame []byte) *Packet {
	return &Packet{
		msgType:   msgType,
		payload:   payload,
		timestamp: time.Now(),
		rawFrame:  rawFrame,
	}
}

// Type returns the packet's type code.
func (p *Packet) Type() uint8 {
	return p.msgType
}

// Payload returns the packet's payload bytes.
func (p *Packet) Payload() []byte {
	return p.payload
}

// Timestamp returns the packet's decode timestamp.
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// RawFrame returns the complete wire frame the packet was decoded from,
// including the START/STOP framing and CRC bytes.
func (p *Packet) RawFrame() []byte {
	return p.rawFrame
}
