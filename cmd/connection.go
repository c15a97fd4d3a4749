// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/zettalabs/zettascope/internal/config"
	"github.com/zettalabs/zettascope/pkg/zetta"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// SerialTransport adapts a serial port to the zetta.Transport interface.
// The port runs with a short read timeout; Available performs one timed
// read into a stash so the protocol's polling loop never parks on the
// device, and Read drains the stash.
type SerialTransport struct {
	port  serial.Port
	mu    sync.Mutex
	stash []byte
}

func (s *SerialTransport) Available() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stash) == 0 {
		buf := make([]byte, 256)
		n, err := s.port.Read(buf) // returns n=0 on read timeout
		if err != nil {
			return 0, err
		}
		s.stash = append(s.stash, buf[:n]...)
	}
	return len(s.stash), nil
}

func (s *SerialTransport) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stash) > 0 {
		n := copy(p, s.stash)
		s.stash = s.stash[n:]
		return n, nil
	}
	return s.port.Read(p)
}

func (s *SerialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}

// WebSocketTransport adapts a WebSocket byte stream to zetta.Transport. A
// pump goroutine moves binary messages into an internal buffer so that
// Available can answer without blocking on the socket.
type WebSocketTransport struct {
	conn *websocket.Conn

	mu     sync.Mutex
	buf    []byte
	closed bool
	rdErr  error

	writeMu sync.Mutex
}

// newWebSocketTransport wraps an established connection and starts the
// read pump.
func newWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	w := &WebSocketTransport{conn: conn}
	go w.pump()
	return w
}

func (w *WebSocketTransport) pump() {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.closed = true
			w.rdErr = ErrConnectionClosed
			w.mu.Unlock()
			return
		}

		// Only binary messages carry protocol bytes.
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.mu.Lock()
		w.buf = append(w.buf, data...)
		w.mu.Unlock()
	}
}

// Available reports buffered bytes. Bytes received before the connection
// dropped stay readable; the error surfaces once the buffer drains.
func (w *WebSocketTransport) Available() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 && w.closed {
		return 0, w.rdErr
	}
	return len(w.buf), nil
}

func (w *WebSocketTransport) Read(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		if w.closed {
			return 0, w.rdErr
		}
		return 0, nil
	}

	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

func (w *WebSocketTransport) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketTransport) Close() error {
	return w.conn.Close()
}

// parityModes maps config parity names onto serial library constants.
var parityModes = map[string]serial.Parity{
	"none": serial.NoParity,
	"odd":  serial.OddParity,
	"even": serial.EvenParity,
}

// OpenSerialTransport opens a serial port configured per sc, with the given
// read timeout applied so polling reads return promptly.
func OpenSerialTransport(sc config.SerialConfig, readTimeout time.Duration) (zetta.Transport, error) {
	mode := &serial.Mode{
		BaudRate: sc.BaudRate,
		DataBits: sc.DataBits,
		Parity:   parityModes[sc.Parity],
		StopBits: serial.OneStopBit,
	}
	if sc.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	port, err := serial.Open(sc.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", sc.Port, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", sc.Port, err)
	}

	return &SerialTransport{port: port}, nil
}

// OpenWebSocketTransport opens a WebSocket connection with HTTP Basic auth.
func OpenWebSocketTransport(wsURL, username, password string, skipSSLVerify bool) (zetta.Transport, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketTransport(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("ZETTA_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenTransport opens either a serial or WebSocket transport based on the
// effective configuration, returning it with a human-readable description.
func OpenTransport() (zetta.Transport, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		transport, err := OpenWebSocketTransport(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return transport, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		transport, err := OpenSerialTransport(cfg.Serial, cfg.Protocol.ReadTimeout())
		if err != nil {
			return nil, "", err
		}
		return transport, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// newProtocol assembles a Protocol over transport with the configured
// tuning options, plus any extra options from the caller.
func newProtocol(transport zetta.Transport, opts ...zetta.Option) *zetta.Protocol {
	base := []zetta.Option{
		zetta.WithPollInterval(cfg.Protocol.PollInterval()),
	}
	if cfg.Protocol.QueueCapacity > 0 {
		base = append(base, zetta.WithQueueCapacity(cfg.Protocol.QueueCapacity))
	}
	return zetta.New(transport, append(base, opts...)...)
}
