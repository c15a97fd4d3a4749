// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import (
	"bytes"
	"errors"
	"sync"
)

// ErrTransportClosed is returned by MockTransport operations after Close.
var ErrTransportClosed = errors.New("transport closed")

// MockTransport implements Transport with configurable behaviour for
// testing. It provides control over reads, writes, and injected errors
// without real serial hardware.
type MockTransport struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// ReadErr is returned by the next Read call if set, then cleared.
	ReadErr error

	// WriteErr is returned by the next Write call if set, then cleared.
	WriteErr error

	// CloseErr is returned by Close if set.
	CloseErr error

	closed     bool
	readCalls  int
	writeCalls int
}

// NewMockTransport creates an empty mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Available returns the number of unread bytes queued by AddReadData.
func (m *MockTransport) Available() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}
	return m.readBuf.Len(), nil
}

// Read reads queued data, returning any injected error first.
func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls++

	if m.closed {
		return 0, ErrTransportClosed
	}
	if m.ReadErr != nil {
		err := m.ReadErr
		m.ReadErr = nil
		return 0, err
	}
	if m.readBuf.Len() == 0 {
		return 0, nil
	}
	return m.readBuf.Read(p)
}

// Write captures data, returning any injected error first.
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls++

	if m.closed {
		return 0, ErrTransportClosed
	}
	if m.WriteErr != nil {
		err := m.WriteErr
		m.WriteErr = nil
		return 0, err
	}
	return m.writeBuf.Write(p)
}

// Close marks the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseErr
}

// AddReadData queues data to be returned by subsequent Read calls.
func (m *MockTransport) AddReadData(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Write(data)
}

// WrittenData returns a copy of all data written so far.
func (m *MockTransport) WrittenData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, m.writeBuf.Len())
	copy(out, m.writeBuf.Bytes())
	return out
}

// ReadCalls returns the number of Read calls made.
func (m *MockTransport) ReadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCalls
}

// WriteCalls returns the number of Write calls made.
func (m *MockTransport) WriteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeCalls
}

// Reset clears all buffers, counters, and injected errors.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Reset()
	m.writeBuf.Reset()
	m.readCalls = 0
	m.writeCalls = 0
	m.closed = false
	m.ReadErr = nil
	m.WriteErr = nil
	m.CloseErr = nil
}
