// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import (
	"fmt"
	"sync"
	"time"
)

const (
	defaultPollInterval = time.Millisecond
	errorBackoff        = 100 * time.Millisecond
	stopTimeout         = time.Second
)

// ReceiveCallback is invoked synchronously on the receive loop for every
// decoded packet, after the packet has been queued. A slow or blocking
// callback directly delays subsequent byte ingestion; keep it non-blocking
// and hand heavy work to another goroutine.
type ReceiveCallback func(*Packet)

// ErrorCallback receives every non-fatal protocol error: transport
// failures, codec failures, and panics from user-supplied handlers. None of
// these stop the receive loop. Invoked from both the caller's goroutine
// (send paths) and the receive loop.
type ErrorCallback func(error)

// Option configures a Protocol at construction time.
type Option func(*Protocol)

// WithReceiveCallback sets the per-packet callback.
func WithReceiveCallback(cb ReceiveCallback) Option {
	return func(p *Protocol) { p.rxCallback = cb }
}

// WithErrorCallback sets the error reporting callback.
func WithErrorCallback(cb ErrorCallback) Option {
	return func(p *Protocol) { p.errCallback = cb }
}

// WithQueueCapacity bounds the delivery queue. When full, the oldest packet
// is evicted and counted in the QueueDrops statistic. capacity <= 0 keeps
// the queue unbounded.
func WithQueueCapacity(capacity int) Option {
	return func(p *Protocol) { p.queueCapacity = capacity }
}

// WithPollInterval sets how long the receive loop sleeps when the transport
// has no data. Defaults to one millisecond.
func WithPollInterval(d time.Duration) Option {
	return func(p *Protocol) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// Protocol ties the Zetta components together over a transport: it owns the
// codec registry, the statistics counters, the delivery queue, and the
// background receive loop. Sends happen on the caller's goroutine; receives
// on the loop. A single mutex serializes all transport access so frames are
// never interleaved on the wire.
type Protocol struct {
	transport Transport
	mu        sync.Mutex // guards transport reads and writes

	registry *Registry
	stats    *Stats
	decoder  *Decoder
	queue    *Queue

	rxCallback    ReceiveCallback
	errCallback   ErrorCallback
	pollInterval  time.Duration
	queueCapacity int

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a Protocol over the given transport. The instance is inert
// until Start is called; sends work immediately.
func New(transport Transport, opts ...Option) *Protocol {
	p := &Protocol{
		transport:    transport,
		registry:     NewRegistry(),
		stats:        NewStats(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.decoder = NewDecoder(p.stats)
	p.queue = newQueue(p.queueCapacity, p.stats.addQueueDrop)
	return p
}

// Start launches the receive loop. Calling Start on a running instance is a
// no-op.
func (p *Protocol) Start() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.receiveLoop(p.stop, p.done)
}

// Stop signals the receive loop, waits up to one second for it to exit,
// then closes the transport. Stopping is not instantaneous: the loop checks
// the stop signal once per iteration.
func (p *Protocol) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stop)

	select {
	case <-p.done:
	case <-time.After(stopTimeout):
		p.reportError(fmt.Errorf("receive loop did not stop within %v", stopTimeout))
	}

	if err := p.transport.Close(); err != nil {
		p.reportError(fmt.Errorf("transport close failed: %w", err))
	}
}

// RegisterHandler associates a parser and/or builder with a packet type for
// the send and process paths. Re-registration replaces the previous entry.
func (p *Protocol) RegisterHandler(msgType uint8, parser Parser, builder Builder) {
	p.registry.Register(msgType, parser, builder)
}

// SendRaw encodes payload into a frame and writes it to the transport under
// exclusive access. Returns false, with the error reported, when the
// payload exceeds MaxPayloadSize (nothing is written) or the transport
// write fails.
func (p *Protocol) SendRaw(msgType uint8, payload []byte) bool {
	frame, err := Encode(msgType, payload)
	if err != nil {
		p.reportError(err)
		return false
	}

	p.mu.Lock()
	_, err = p.transport.Write(frame)
	if err == nil {
		p.stats.addSent()
	}
	p.mu.Unlock()

	if err != nil {
		p.reportError(fmt.Errorf("send failed: %w", err))
		return false
	}
	return true
}

// Send builds a payload from value using the registered builder for the
// type and delegates to SendRaw. Returns false, with the error reported,
// when no builder is registered or the builder fails.
func (p *Protocol) Send(msgType uint8, value interface{}) bool {
	payload, err := p.registry.Build(msgType, value)
	if err != nil {
		p.reportError(fmt.Errorf("failed to build packet: %w", err))
		return false
	}
	return p.SendRaw(msgType, payload)
}

// GetPacket removes and returns the oldest received packet. wait controls
// blocking: negative blocks until a packet arrives, zero polls, positive
// blocks up to that long. Returns nil on timeout or empty poll.
func (p *Protocol) GetPacket(wait time.Duration) *Packet {
	return p.queue.Pop(wait)
}

// ProcessPacket converts a packet's payload using the registered parser for
// its type. With no parser registered the raw payload is returned
// unchanged; a parser failure is reported and also falls back to the raw
// payload, so processing never fails.
func (p *Protocol) ProcessPacket(pkt *Packet) interface{} {
	value, err := p.registry.Parse(pkt.Type(), pkt.Payload())
	if err != nil {
		p.reportError(fmt.Errorf("failed to parse packet type 0x%02X: %w", pkt.Type(), err))
		return pkt.Payload()
	}
	return value
}

// Flush drains the delivery queue, discarding all queued packets.
func (p *Protocol) Flush() {
	p.queue.Flush()
}

// QueueLen returns the number of packets waiting in the delivery queue.
func (p *Protocol) QueueLen() int {
	return p.queue.Len()
}

// Stats returns a snapshot of the protocol counters.
func (p *Protocol) Stats() Snapshot {
	return p.stats.Snapshot()
}

// receiveLoop polls the transport for available bytes, reads them under
// exclusive access, and feeds the stream decoder. Decoded packets are
// queued and then handed to the receive callback on this same goroutine.
// The loop exits only on the stop signal; every error is reported and
// survived.
func (p *Protocol) receiveLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, MaxFrameSize*8)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := p.transport.Available()
		if err != nil {
			p.reportError(fmt.Errorf("receive failed: %w", err))
			p.sleep(stop, errorBackoff)
			continue
		}
		if n == 0 {
			p.sleep(stop, p.pollInterval)
			continue
		}
		if n > len(buf) {
			buf = make([]byte, n)
		}

		p.mu.Lock()
		read, err := p.transport.Read(buf[:n])
		p.mu.Unlock()

		if err != nil {
			p.reportError(fmt.Errorf("receive failed: %w", err))
			p.sleep(stop, errorBackoff)
			continue
		}
		if read == 0 {
			p.sleep(stop, p.pollInterval)
			continue
		}

		p.stats.addBytesReceived(read)
		for _, pkt := range p.decoder.Feed(buf[:read]) {
			p.queue.Push(pkt)
			p.invokeReceiveCallback(pkt)
		}
	}
}

// sleep waits for d or until stop is signalled, whichever comes first.
func (p *Protocol) sleep(stop <-chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
	case <-timer.C:
	}
}

// invokeReceiveCallback runs the user callback, recovering a panic so a
// faulty callback cannot kill the receive loop.
func (p *Protocol) invokeReceiveCallback(pkt *Packet) {
	if p.rxCallback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.reportError(fmt.Errorf("receive callback panic: %v", r))
		}
	}()
	p.rxCallback(pkt)
}

// reportError delivers err to the error callback, if any. A panicking
// error callback is swallowed; error reporting must never take the
// instance down.
func (p *Protocol) reportError(err error) {
	if p.errCallback == nil {
		return
	}
	defer func() {
		recover()
	}()
	p.errCallback(err)
}
