// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Parser converts a received payload into a structured application value.
type Parser func(payload []byte) (interface{}, error)

// Builder converts a structured application value into payload bytes.
type Builder func(value interface{}) ([]byte, error)

// ErrNoBuilder is returned by Build when no builder is registered for the
// requested packet type.
var ErrNoBuilder = errors.New("no builder registered")

type codecEntry struct {
	parser  Parser
	builder Builder
}

// Registry maps packet types to optional parser/builder pairs. At most one
// entry exists per type; re-registration replaces it. The registry is safe
// for concurrent use, so handlers may be added after the protocol starts.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint8]codecEntry
}

// NewRegistry creates an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint8]codecEntry)}
}

// Register associates a parser and/or builder with a packet type. Either
// function may be nil. Registering a type twice replaces the previous entry.
func (r *Registry) Register(msgType uint8, parser Parser, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[msgType] = codecEntry{parser: parser, builder: builder}
}

// Build converts a value into payload bytes using the registered builder
// for the type. Returns ErrNoBuilder when the type has no builder. A panic
// inside the builder is recovered and returned as an error.
func (r *Registry) Build(msgType uint8, value interface{}) ([]byte, error) {
	r.mu.RLock()
	entry, ok := r.entries[msgType]
	r.mu.RUnlock()

	if !ok || entry.builder == nil {
		return nil, fmt.Errorf("%w for packet type 0x%02X", ErrNoBuilder, msgType)
	}

	return callBuilder(entry.builder, value)
}

// Parse converts payload bytes into a value using the registered parser for
// the type. When no parser is registered the raw payload is returned
// unchanged rather than failing. A panic inside the parser is recovered and
// returned as an error.
func (r *Registry) Parse(msgType uint8, payload []byte) (interface{}, error) {
	r.mu.RLock()
	entry, ok := r.entries[msgType]
	r.mu.RUnlock()

	if !ok || entry.parser == nil {
		return payload, nil
	}

	return callParser(entry.parser, payload)
}

func callBuilder(b Builder, value interface{}) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("builder panic: %v", r)
		}
	}()
	return b(value)
}

func callParser(p Parser, payload []byte) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()
	return p(payload)
}

// Codec helpers for common payload shapes. These mirror the struct/string
// handler conventions used by Zetta firmware tooling.

// StringParser returns a Parser decoding the payload as a UTF-8 string.
func StringParser() Parser {
	return func(payload []byte) (interface{}, error) {
		return string(payload), nil
	}
}

// StringBuilder returns a Builder encoding a string value as UTF-8 bytes.
func StringBuilder() Builder {
	return func(value interface{}) ([]byte, error) {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string value, got %T", value)
		}
		return []byte(s), nil
	}
}

// CBORParser returns a Parser decoding the payload as a CBOR value.
func CBORParser() Parser {
	return func(payload []byte) (interface{}, error) {
		var v interface{}
		if err := cbor.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode CBOR payload: %w", err)
		}
		return v, nil
	}
}

// CBORBuilder returns a Builder encoding a value as CBOR bytes.
func CBORBuilder() Builder {
	return func(value interface{}) ([]byte, error) {
		data, err := cbor.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
		}
		return data, nil
	}
}

// BinaryParser returns a Parser decoding the payload as a little-endian
// fixed-size struct of type T.
func BinaryParser[T any]() Parser {
	return func(payload []byte) (interface{}, error) {
		var v T
		if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("failed to decode binary payload: %w", err)
		}
		return v, nil
	}
}

// BinaryBuilder returns a Builder encoding a value of type T as a
// little-endian fixed-size struct.
func BinaryBuilder[T any]() Builder {
	return func(value interface{}) ([]byte, error) {
		v, ok := value.(T)
		if !ok {
			return nil, fmt.Errorf("expected %T value, got %T", v, value)
		}
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("failed to encode binary payload: %w", err)
		}
		return buf.Bytes(), nil
	}
}
