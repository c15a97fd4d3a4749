// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats tracks protocol counters. All counters are monotonically
// non-decreasing for the lifetime of the instance; they are mutated from
// both the caller's goroutine (sends) and the receive loop (receives and
// protocol errors), so every field is atomic.
type Stats struct {
	startTime time.Time

	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	crcErrors       atomic.Uint64
	frameErrors     atomic.Uint64
	bytesReceived   atomic.Uint64
	queueDrops      atomic.Uint64
}

// NewStats creates a new statistics tracker.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) addSent()               { s.packetsSent.Add(1) }
func (s *Stats) addReceived()           { s.packetsReceived.Add(1) }
func (s *Stats) addCRCError()           { s.crcErrors.Add(1) }
func (s *Stats) addFrameError()         { s.frameErrors.Add(1) }
func (s *Stats) addBytesReceived(n int) { s.bytesReceived.Add(uint64(n)) }
func (s *Stats) addQueueDrop()          { s.queueDrops.Add(1) }

// Snapshot returns a consistent copy of the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		PacketsSent:     s.packetsSent.Load(),
		PacketsReceived: s.packetsReceived.Load(),
		CRCErrors:       s.crcErrors.Load(),
		FrameErrors:     s.frameErrors.Load(),
		BytesReceived:   s.bytesReceived.Load(),
		QueueDrops:      s.queueDrops.Load(),
		Uptime:          time.Since(s.startTime),
	}
}

// Snapshot is a point-in-time copy of the protocol counters.
type Snapshot struct {
	PacketsSent     uint64
	PacketsReceived uint64
	CRCErrors       uint64
	FrameErrors     uint64
	BytesReceived   uint64
	QueueDrops      uint64
	Uptime          time.Duration
}

// PacketRate returns received packets per second since the instance started.
func (s Snapshot) PacketRate() float64 {
	elapsed := s.Uptime.Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.PacketsReceived) / elapsed
}

// ErrorRate returns protocol errors (CRC + frame) per second since the
// instance started.
func (s Snapshot) ErrorRate() float64 {
	elapsed := s.Uptime.Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.CRCErrors+s.FrameErrors) / elapsed
}

// String returns a formatted statistics summary.
func (s Snapshot) String() string {
	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", s.Uptime.Seconds())
	result += fmt.Sprintf("Packets Sent:     %8d\n", s.PacketsSent)
	result += fmt.Sprintf("Packets Received: %8d\n", s.PacketsReceived)
	result += fmt.Sprintf("Bytes Received:   %8d\n", s.BytesReceived)

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:       %8d\n", s.CRCErrors)
	}
	if s.FrameErrors > 0 {
		result += fmt.Sprintf("Frame Errors:     %8d\n", s.FrameErrors)
	}
	if s.QueueDrops > 0 {
		result += fmt.Sprintf("Queue Drops:      %8d\n", s.QueueDrops)
	}

	result += fmt.Sprintf("Packet Rate:      %8.1f pkts/sec\n", s.PacketRate())
	result += fmt.Sprintf("Error Rate:       %8.1f errors/sec\n", s.ErrorRate())
	result += "================================\n"

	return result
}
