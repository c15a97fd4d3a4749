// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package cmd

import (
	"context"
	crand "crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zettalabs/zettascope/internal/metrics"
	"github.com/zettalabs/zettascope/pkg/zetta"
)

var bridgeListen string

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve a serial port to WebSocket clients",
	Long: `Bridge a local serial port onto a WebSocket endpoint.

Every validated frame read from the serial port is broadcast as a binary
message to all connected WebSocket clients, and binary messages from clients
are written to the port. Connect with any zettascope command using
--url ws://host:port/.

Endpoints:
  /         WebSocket byte stream (HTTP Basic auth when configured)
  /metrics  Prometheus metrics for the protocol counters

Credentials come from the bridge section of the config file.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeListen, "listen", "", "Listen address (overrides config)")
}

// frameHub fans validated frames out to subscribed WebSocket clients.
type frameHub struct {
	mu          sync.Mutex
	subscribers map[string]chan []byte
}

func newFrameHub() *frameHub {
	return &frameHub{subscribers: make(map[string]chan []byte)}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (h *frameHub) subscribe() (string, chan []byte) {
	id := randomID()
	ch := make(chan []byte, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

func (h *frameHub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// broadcast delivers frame to every subscriber. A client that cannot keep
// up has its oldest pending frame dropped rather than stalling the others.
func (h *frameHub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

func (h *frameHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// basicAuth wraps next with HTTP Basic auth when credentials are set.
func basicAuth(username, password string, next http.Handler) http.Handler {
	if username == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="zettascope"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func runBridge(cmd *cobra.Command, args []string) error {
	if portName == "" {
		return fmt.Errorf("bridge requires --port")
	}
	listen := cfg.Bridge.Listen
	if bridgeListen != "" {
		listen = bridgeListen
	}

	transport, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}

	hub := newFrameHub()
	proto := newProtocol(transport,
		zetta.WithReceiveCallback(func(pkt *zetta.Packet) {
			hub.broadcast(pkt.RawFrame())
		}),
		zetta.WithErrorCallback(func(err error) {
			log.Warn().Err(err).Msg("protocol error")
		}),
	)
	proto.Start()
	defer proto.Stop()

	// Clients push opaque bytes toward the device; the receive loop is the
	// only reader, so a dedicated write path does not race it.
	var writeMu sync.Mutex
	writeToPort := func(data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_, err := transport.Write(data)
		return err
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  256,
		WriteBufferSize: 256,
	}

	mux := http.NewServeMux()
	mux.Handle("/", basicAuth(cfg.Bridge.Username, cfg.Bridge.Password,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
				return
			}
			go serveClient(conn, hub, writeToPort)
		})))

	if cfg.Bridge.Metrics {
		mux.Handle("/metrics", promhttp.HandlerFor(
			metrics.MustRegister(proto), promhttp.HandlerOpts{}))
	}

	server := &http.Server{
		Addr:    listen,
		Handler: mux,
	}

	log.Info().Str("connection", connInfo).Str("listen", listen).
		Bool("auth", cfg.Bridge.Username != "").Msg("bridge up")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("bridge server failed: %w", err)
	case <-sig:
	}

	log.Info().Int("clients", hub.count()).Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// serveClient runs one WebSocket client: a writer goroutine draining the
// hub subscription, and a read loop relaying client bytes to the port.
func serveClient(conn *websocket.Conn, hub *frameHub, writeToPort func([]byte) error) {
	remote := conn.RemoteAddr().String()
	id, frames := hub.subscribe()
	log.Info().Str("remote", remote).Str("id", id).Msg("client connected")

	defer func() {
		hub.unsubscribe(id)
		conn.Close()
		log.Info().Str("remote", remote).Str("id", id).Msg("client disconnected")
	}()

	go func() {
		for frame := range frames {
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("remote", remote).Msg("client read error")
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		if err := writeToPort(data); err != nil {
			log.Warn().Err(err).Msg("port write failed")
			return
		}
	}
}
