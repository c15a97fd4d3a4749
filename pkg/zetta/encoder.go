package zetta

import (
	"errors"
	"fmt"
)

// ErrPayloadTooLarge is returned by Encode when the payload exceeds
// MaxPayloadSize. No bytes are produced in that case.
var ErrPayloadTooLarge = errors.New("payload too large")

// Encode wraps a packet type and payload into a complete wire frame:
//
//	START | type | length | payload | CRC-8 | STOP
//
// The checksum covers type, length, and payload but not the framing bytes,
// so stop-byte mismatches can be distinguished from integrity errors.
func Encode(msgType uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, len(payload)+FrameOverhead)
	frame = append(frame, StartByte, msgType, uint8(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(frame[1:]))
	frame = append(frame, StopByte)

	return frame, nil
}
