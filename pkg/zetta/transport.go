// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package zetta

import "io"

// Transport is the byte-stream collaborator the protocol runs over, such as
// a serial port. Available reports how many bytes can currently be read
// without blocking; the receive loop polls it before every read so it never
// parks in unbounded I/O and can observe a stop request promptly.
//
// The protocol serializes all Read and Write calls through one lock, so
// implementations only need Available to be safe to call concurrently with
// Write.
type Transport interface {
	Available() (int, error)
	io.Reader
	io.Writer
	io.Closer
}
