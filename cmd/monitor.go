// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zettalabs/zettascope/pkg/zetta"
)

var monitorShowStats bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded packets in human-readable format",
	Long: `Continuously decode and display Zetta protocol packets as they arrive.

Each packet is shown with timestamp, message type, and payload rendered as
text or a hex dump. Invalid bytes between frames are skipped silently and
show up in the closing statistics.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorShowStats, "stats", true, "Print statistics on exit")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	transport, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}

	fmt.Printf("Zettascope - Packet Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Receive loop stops when the remote closes the stream.
	closed := make(chan struct{})
	var closeOnce sync.Once
	proto := newProtocol(transport,
		zetta.WithReceiveCallback(func(p *zetta.Packet) {
			fmt.Print(zetta.FormatPacket(p))
		}),
		zetta.WithErrorCallback(func(err error) {
			if errors.Is(err, ErrConnectionClosed) {
				closeOnce.Do(func() { close(closed) })
				return
			}
			log.Warn().Err(err).Msg("protocol error")
		}),
	)
	proto.Start()
	defer proto.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		fmt.Println()
	case <-closed:
		log.Info().Msg("connection closed")
	}

	if monitorShowStats {
		fmt.Println()
		fmt.Print(proto.Stats().String())
	}
	return nil
}
