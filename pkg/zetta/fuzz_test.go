// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomPayload creates a payload of random length within the protocol bound
func randomPayload(rng *rand.Rand) []byte {
	payload := make([]byte, rng.Intn(MaxPayloadSize+1))
	rng.Read(payload)
	return payload
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecoder_RandomBytes feeds random bytes to the decoder and
// verifies it never panics and always consumes or buffers its input
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder(nil)

		length := rng.Intn(512) + 1
		data := make([]byte, length)
		rng.Read(data)

		d.Feed(data)

		// Whatever remains buffered must be a partial frame candidate:
		// it starts with START and is shorter than its declared size.
		if pending := d.Pending(); pending > 0 {
			if pending >= MaxFrameSize {
				t.Fatalf("round %d: decoder stalled with %d bytes buffered", i, pending)
			}
		}
	}
}

// TestFuzzDecoder_GarbageThenFrame verifies the resynchronization rule:
// any run of garbage followed by a valid frame yields exactly that packet
func TestFuzzDecoder_GarbageThenFrame(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		msgType := uint8(rng.Intn(256))
		payload := randomPayload(rng)
		frame, err := Encode(msgType, payload)
		if err != nil {
			t.Fatalf("round %d: encode error: %v", i, err)
		}

		// Garbage run of non-START bytes. Arbitrary garbage could embed a
		// parsable frame prefix that swallows the real frame, so the fuzz
		// property holds for runs that never align on START.
		garbage := make([]byte, rng.Intn(64))
		for j := range garbage {
			b := byte(rng.Intn(256))
			for b == StartByte {
				b = byte(rng.Intn(256))
			}
			garbage[j] = b
		}

		d := NewDecoder(nil)
		packets := d.Feed(append(garbage, frame...))

		if len(packets) != 1 {
			t.Fatalf("round %d: expected 1 packet after %d garbage bytes, got %d",
				i, len(garbage), len(packets))
		}
		if packets[0].Type() != msgType || !bytes.Equal(packets[0].Payload(), payload) {
			t.Fatalf("round %d: decoded packet differs from original", i)
		}
	}
}

// TestFuzzDecoder_RandomChunking encodes a run of frames and feeds the
// concatenated stream in random chunk sizes, expecting every packet back
// in order
func TestFuzzDecoder_RandomChunking(t *testing.T) {
	rounds := getFuzzRounds() / 10
	if rounds < 1 {
		rounds = 1
	}
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		frameCount := rng.Intn(10) + 1
		var stream []byte
		var payloads [][]byte

		for j := 0; j < frameCount; j++ {
			payload := randomPayload(rng)
			frame, err := Encode(uint8(rng.Intn(256)), payload)
			if err != nil {
				t.Fatalf("encode error: %v", err)
			}
			stream = append(stream, frame...)
			payloads = append(payloads, payload)
		}

		d := NewDecoder(nil)
		var packets []*Packet
		for len(stream) > 0 {
			n := rng.Intn(len(stream)) + 1
			packets = append(packets, d.Feed(stream[:n])...)
			stream = stream[n:]
		}

		if len(packets) != frameCount {
			t.Fatalf("round %d: expected %d packets, got %d", i, frameCount, len(packets))
		}
		for j, pkt := range packets {
			if !bytes.Equal(pkt.Payload(), payloads[j]) {
				t.Fatalf("round %d: packet %d out of order or corrupted", i, j)
			}
		}
	}
}

// ============================================================
// Encoder Fuzz Tests
// ============================================================

// TestFuzzEncode_RandomInputs checks that Encode only ever fails on
// oversize payloads and otherwise produces a well-formed frame
func TestFuzzEncode_RandomInputs(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		msgType := uint8(rng.Intn(256))
		payload := make([]byte, rng.Intn(MaxPayloadSize*2))
		rng.Read(payload)

		frame, err := Encode(msgType, payload)
		if len(payload) > MaxPayloadSize {
			if err == nil {
				t.Fatalf("round %d: oversize payload accepted", i)
			}
			continue
		}
		if err != nil {
			t.Fatalf("round %d: unexpected encode error: %v", i, err)
		}

		if len(frame) != len(payload)+FrameOverhead {
			t.Fatalf("round %d: wrong frame size %d", i, len(frame))
		}
		if frame[0] != StartByte || frame[len(frame)-1] != StopByte {
			t.Fatalf("round %d: bad framing bytes", i)
		}
		if frame[len(frame)-2] != Checksum(frame[1:len(frame)-2]) {
			t.Fatalf("round %d: bad checksum", i)
		}
	}
}
