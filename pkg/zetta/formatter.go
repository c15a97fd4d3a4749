// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import (
	"fmt"
	"strings"
)

// FormatPacketType returns a human-readable name for a packet type code.
func FormatPacketType(msgType uint8) string {
	switch msgType {
	case MsgAck:
		return "ACK"
	case MsgPublish:
		return "PUBLISH"
	case MsgSubscribe:
		return "SUBSCRIBE"
	default:
		return "UNKNOWN"
	}
}

// FormatPacket renders a packet as a human-readable log line with
// timestamp, type, length, and payload.
func FormatPacket(p *Packet) string {
	timestamp := p.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n",
		timestamp, FormatPacketType(p.Type()), p.Type(), len(p.Payload()))

	if len(p.Payload()) > 0 {
		result += formatPayload(p.Payload())
	}

	return result
}

// formatPayload renders payload bytes as a hex dump, with a printable-ASCII
// rendering alongside when the payload looks like text.
func formatPayload(payload []byte) string {
	var hex strings.Builder
	hex.WriteString("  Payload: ")
	for i, b := range payload {
		if i > 0 && i%16 == 0 {
			hex.WriteString("\n           ")
		}
		fmt.Fprintf(&hex, "%02X ", b)
	}
	hex.WriteString("\n")

	if isPrintable(payload) {
		fmt.Fprintf(&hex, "  Text:    %q\n", string(payload))
	}

	return hex.String()
}

func isPrintable(data []byte) bool {
	for _, b := range data {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return len(data) > 0
}
