// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

// errorCollector gathers reported errors across goroutines.
type errorCollector struct {
	mu   sync.Mutex
	errs []error
}

func (c *errorCollector) callback() ErrorCallback {
	return func(err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.errs = append(c.errs, err)
	}
}

func (c *errorCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

func (c *errorCollector) contains(target error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, err := range c.errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestProtocol_SendRaw(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)

	if !p.SendRaw(MsgPublish, []byte("AB")) {
		t.Fatal("SendRaw failed")
	}

	expected, _ := Encode(MsgPublish, []byte("AB"))
	if !bytes.Equal(mock.WrittenData(), expected) {
		t.Errorf("wire bytes mismatch:\nexpected % X\ngot      % X", expected, mock.WrittenData())
	}
	if got := p.Stats().PacketsSent; got != 1 {
		t.Errorf("expected packets_sent=1, got %d", got)
	}
}

func TestProtocol_SendRawPayloadTooLarge(t *testing.T) {
	mock := NewMockTransport()
	var errs errorCollector
	p := New(mock, WithErrorCallback(errs.callback()))

	payload := bytes.Repeat([]byte{0x00}, MaxPayloadSize+1)
	if p.SendRaw(MsgPublish, payload) {
		t.Fatal("expected SendRaw to reject oversize payload")
	}

	if len(mock.WrittenData()) != 0 {
		t.Errorf("oversize payload must write no bytes, wrote % X", mock.WrittenData())
	}
	if got := p.Stats().PacketsSent; got != 0 {
		t.Errorf("expected packets_sent=0, got %d", got)
	}
	if !errs.contains(ErrPayloadTooLarge) {
		t.Error("expected ErrPayloadTooLarge report")
	}
}

func TestProtocol_SendRawTransportFailure(t *testing.T) {
	mock := NewMockTransport()
	mock.WriteErr = errors.New("device gone")
	var errs errorCollector
	p := New(mock, WithErrorCallback(errs.callback()))

	if p.SendRaw(MsgPublish, []byte("x")) {
		t.Fatal("expected SendRaw to fail on transport error")
	}
	if got := p.Stats().PacketsSent; got != 0 {
		t.Errorf("expected packets_sent=0 on write failure, got %d", got)
	}
	if errs.count() == 0 {
		t.Error("expected transport failure report")
	}
}

func TestProtocol_SendWithoutBuilder(t *testing.T) {
	mock := NewMockTransport()
	var errs errorCollector
	p := New(mock, WithErrorCallback(errs.callback()))

	if p.Send(MsgSubscribe, "topic") {
		t.Fatal("expected Send to fail without a builder")
	}
	if got := p.Stats().PacketsSent; got != 0 {
		t.Errorf("expected packets_sent unchanged, got %d", got)
	}
	if !errs.contains(ErrNoBuilder) {
		t.Error("expected ErrNoBuilder report")
	}
}

func TestProtocol_SendWithBuilder(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)
	p.RegisterHandler(MsgPublish, StringParser(), StringBuilder())

	if !p.Send(MsgPublish, "hi") {
		t.Fatal("Send failed")
	}

	expected, _ := Encode(MsgPublish, []byte("hi"))
	if !bytes.Equal(mock.WrittenData(), expected) {
		t.Errorf("wire bytes mismatch: % X", mock.WrittenData())
	}
}

func TestProtocol_ReceivePacket(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)
	p.Start()
	defer p.Stop()

	frame, _ := Encode(MsgPublish, []byte("inbound"))
	mock.AddReadData(frame)

	pkt := p.GetPacket(time.Second)
	if pkt == nil {
		t.Fatal("no packet received")
	}
	if pkt.Type() != MsgPublish || !bytes.Equal(pkt.Payload(), []byte("inbound")) {
		t.Errorf("wrong packet: type 0x%02X payload % X", pkt.Type(), pkt.Payload())
	}

	snap := p.Stats()
	if snap.PacketsReceived != 1 {
		t.Errorf("expected packets_received=1, got %d", snap.PacketsReceived)
	}
	if snap.BytesReceived != uint64(len(frame)) {
		t.Errorf("expected bytes_received=%d, got %d", len(frame), snap.BytesReceived)
	}
}

func TestProtocol_ReceiveOrder(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)
	p.Start()
	defer p.Stop()

	first, _ := Encode(MsgPublish, []byte("one"))
	second, _ := Encode(MsgPublish, []byte("two"))
	mock.AddReadData(append(append([]byte{}, first...), second...))

	a := p.GetPacket(time.Second)
	b := p.GetPacket(time.Second)
	if a == nil || b == nil {
		t.Fatal("missing packets")
	}
	if !bytes.Equal(a.Payload(), []byte("one")) || !bytes.Equal(b.Payload(), []byte("two")) {
		t.Errorf("packets out of arrival order: % X then % X", a.Payload(), b.Payload())
	}
}

func TestProtocol_ReceiveCallback(t *testing.T) {
	mock := NewMockTransport()
	received := make(chan *Packet, 1)
	p := New(mock, WithReceiveCallback(func(pkt *Packet) {
		received <- pkt
	}))
	p.Start()
	defer p.Stop()

	frame, _ := Encode(MsgAck, []byte("cb"))
	mock.AddReadData(frame)

	select {
	case pkt := <-received:
		if pkt.Type() != MsgAck {
			t.Errorf("callback got wrong packet type 0x%02X", pkt.Type())
		}
	case <-time.After(time.Second):
		t.Fatal("receive callback never invoked")
	}

	// The packet is queued before the callback runs, so it is also
	// available to the consumer.
	if pkt := p.GetPacket(time.Second); pkt == nil {
		t.Error("packet not queued alongside callback")
	}
}

func TestProtocol_CallbackPanicSurvived(t *testing.T) {
	mock := NewMockTransport()
	var errs errorCollector
	p := New(mock,
		WithReceiveCallback(func(pkt *Packet) { panic("handler bug") }),
		WithErrorCallback(errs.callback()),
	)
	p.Start()
	defer p.Stop()

	frame, _ := Encode(MsgPublish, []byte("a"))
	mock.AddReadData(frame)

	if pkt := p.GetPacket(time.Second); pkt == nil {
		t.Fatal("first packet lost")
	}

	// The loop must survive the panic and keep decoding.
	mock.AddReadData(frame)
	if pkt := p.GetPacket(time.Second); pkt == nil {
		t.Fatal("receive loop died after callback panic")
	}
	if errs.count() == 0 {
		t.Error("expected callback panic report")
	}
}

func TestProtocol_ReadErrorDoesNotStopLoop(t *testing.T) {
	mock := NewMockTransport()
	var errs errorCollector
	p := New(mock, WithErrorCallback(errs.callback()))
	p.Start()
	defer p.Stop()

	mock.AddReadData([]byte{0x01}) // makes Available nonzero
	mock.ReadErr = errors.New("transient read failure")

	frame, _ := Encode(MsgPublish, []byte("after"))
	mock.AddReadData(frame)

	if pkt := p.GetPacket(2 * time.Second); pkt == nil {
		t.Fatal("loop did not recover from read error")
	}
}

func TestProtocol_ProcessPacket(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)
	p.RegisterHandler(MsgPublish, StringParser(), nil)

	parsed := p.ProcessPacket(NewPacket(MsgPublish, []byte("text"), nil))
	if parsed != "text" {
		t.Errorf("expected parsed string, got %v (%T)", parsed, parsed)
	}

	// No parser for this type: raw payload passthrough.
	raw := p.ProcessPacket(NewPacket(0x99, []byte{0xDE, 0xAD}, nil))
	rawBytes, ok := raw.([]byte)
	if !ok || !bytes.Equal(rawBytes, []byte{0xDE, 0xAD}) {
		t.Errorf("expected raw passthrough, got %v (%T)", raw, raw)
	}
}

func TestProtocol_ProcessPacketParserFailure(t *testing.T) {
	mock := NewMockTransport()
	var errs errorCollector
	p := New(mock, WithErrorCallback(errs.callback()))
	p.RegisterHandler(MsgPublish, func(payload []byte) (interface{}, error) {
		return nil, errors.New("malformed")
	}, nil)

	result := p.ProcessPacket(NewPacket(MsgPublish, []byte{0x01}, nil))
	rawBytes, ok := result.([]byte)
	if !ok || !bytes.Equal(rawBytes, []byte{0x01}) {
		t.Errorf("parser failure must fall back to raw payload, got %v", result)
	}
	if errs.count() == 0 {
		t.Error("expected parser failure report")
	}
}

func TestProtocol_Flush(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)
	p.Start()
	defer p.Stop()

	frame, _ := Encode(MsgPublish, []byte("x"))
	mock.AddReadData(append(append([]byte{}, frame...), frame...))

	// Wait for both packets to land, then flush.
	deadline := time.Now().Add(time.Second)
	for p.QueueLen() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.QueueLen() != 2 {
		t.Fatalf("expected 2 queued packets, got %d", p.QueueLen())
	}

	p.Flush()
	if pkt := p.GetPacket(0); pkt != nil {
		t.Error("queue not empty after flush")
	}
}

func TestProtocol_QueueCapacityDropsOldest(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock, WithQueueCapacity(2))
	p.Start()
	defer p.Stop()

	for _, s := range []string{"one", "two", "three"} {
		frame, _ := Encode(MsgPublish, []byte(s))
		mock.AddReadData(frame)
	}

	deadline := time.Now().Add(time.Second)
	for p.Stats().PacketsReceived < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	snap := p.Stats()
	if snap.QueueDrops != 1 {
		t.Errorf("expected queue_drops=1, got %d", snap.QueueDrops)
	}

	pkt := p.GetPacket(time.Second)
	if pkt == nil || !bytes.Equal(pkt.Payload(), []byte("two")) {
		t.Errorf("expected oldest surviving packet 'two', got %v", pkt)
	}
}

func TestProtocol_StopClosesTransport(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)
	p.Start()
	p.Stop()

	if _, err := mock.Write([]byte{0x00}); !errors.Is(err, ErrTransportClosed) {
		t.Error("expected transport closed after Stop")
	}
}

func TestProtocol_StartStopIdempotent(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)

	p.Start()
	p.Start() // second Start is a no-op
	p.Stop()
	p.Stop() // second Stop is a no-op
}

func TestProtocol_StatsMonotonic(t *testing.T) {
	mock := NewMockTransport()
	p := New(mock)
	p.Start()
	defer p.Stop()

	frame, _ := Encode(MsgAck, nil)
	mock.AddReadData(frame)
	if pkt := p.GetPacket(time.Second); pkt == nil {
		t.Fatal("no packet")
	}

	before := p.Stats()
	p.SendRaw(MsgAck, nil)
	after := p.Stats()

	if after.PacketsSent != before.PacketsSent+1 {
		t.Errorf("packets_sent not incremented: %d -> %d", before.PacketsSent, after.PacketsSent)
	}
	if after.PacketsReceived < before.PacketsReceived {
		t.Error("packets_received decreased")
	}
}
