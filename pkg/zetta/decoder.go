// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

// Decoder implements the Zetta stream decoder. It scans an accumulating
// byte buffer fed incrementally by the receive loop, extracting complete,
// validated frames and resynchronizing across garbage one byte at a time.
type Decoder struct {
	buf   []byte
	stats *Stats
}

// NewDecoder creates a stream decoder. The decoder increments the frame and
// CRC error counters of the given Stats; passing nil allocates a fresh
// tracker, available through Stats().
func NewDecoder(stats *Stats) *Decoder {
	if stats == nil {
		stats = NewStats()
	}
	return &Decoder{
		buf:   make([]byte, 0, MaxFrameSize*2),
		stats: stats,
	}
}

// Stats returns the statistics tracker the decoder updates.
func (d *Decoder) Stats() *Stats {
	return d.stats
}

// Pending returns the number of buffered bytes not yet consumed by a frame.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Feed appends data to the decoder's buffer and extracts every complete
// frame it now holds, in arrival order. Candidate frames with an
// out-of-range length or failing the stop byte or checksum are counted and
// discarded; decoding then continues on
// the remaining buffer. Bytes preceding a START byte are consumed one at a
// time without being counted as errors. A trailing partial frame stays
// buffered for the next feed, so the decoder never blocks and always makes
// forward progress on any finite input.
func (d *Decoder) Feed(data []byte) []*Packet {
	d.buf = append(d.buf, data...)

	var packets []*Packet
	for len(d.buf) > 0 {
		// Resynchronize: eat one leading byte until a START byte aligns.
		if d.buf[0] != StartByte {
			d.buf = d.buf[1:]
			continue
		}

		// Need at least start + type + length to know the frame size.
		if len(d.buf) < 3 {
			break
		}

		// A length beyond the protocol bound can never form a valid frame;
		// count it and resynchronize on the next byte instead of waiting
		// for phantom payload bytes.
		if int(d.buf[2]) > MaxPayloadSize {
			d.stats.addFrameError()
			d.buf = d.buf[1:]
			continue
		}

		expected := int(d.buf[2]) + FrameOverhead
		if len(d.buf) < expected {
			break
		}

		// Remove the candidate frame from the buffer before validating.
		frame := make([]byte, expected)
		copy(frame, d.buf[:expected])
		d.buf = d.buf[expected:]

		if pkt := d.validate(frame); pkt != nil {
			packets = append(packets, pkt)
		}
	}

	// The scan loop advances the slice start; re-anchor the remainder so the
	// backing array does not pin consumed bytes.
	if len(d.buf) == 0 && cap(d.buf) > MaxFrameSize*4 {
		d.buf = make([]byte, 0, MaxFrameSize*2)
	}

	return packets
}

// validate checks a candidate frame's stop byte and checksum, counting
// failures, and constructs a Packet on success.
func (d *Decoder) validate(frame []byte) *Packet {
	last := len(frame) - 1

	if frame[last] != StopByte {
		d.stats.addFrameError()
		return nil
	}

	if frame[last-1] != Checksum(frame[1:last-1]) {
		d.stats.addCRCError()
		return nil
	}

	d.stats.addReceived()
	return NewPacket(frame[1], frame[3:last-1], frame)
}
