// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zettalabs/zettascope/pkg/zetta"
)

var packetTestTimeout int

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid Zetta packet",
	Long: `Wait for a valid Zetta packet on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
Zetta protocol packet. It ignores invalid bytes and waits for a complete,
valid packet (passing CRC check).

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for testing connectivity to a device or a zettascope bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	transport, connInfo, err := OpenTransport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Zettascope - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid Zetta packet...\n\n")

	proto := newProtocol(transport)
	proto.Start()
	defer proto.Stop()

	packet := proto.GetPacket(time.Duration(packetTestTimeout) * time.Second)
	if packet == nil {
		stats := proto.Stats()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		if stats.CRCErrors+stats.FrameErrors > 0 {
			fmt.Fprintf(os.Stderr, "(saw %d CRC errors and %d framing errors; check baud rate)\n",
				stats.CRCErrors, stats.FrameErrors)
		}
		os.Exit(1)
	}

	stats := proto.Stats()
	fmt.Printf("SUCCESS: Received valid packet\n")
	fmt.Printf("  Type: %s (0x%02X)\n", zetta.FormatPacketType(packet.Type()), packet.Type())
	fmt.Printf("  Length: %d bytes\n", len(packet.Payload()))
	fmt.Printf("  Frame: % X\n", packet.RawFrame())
	if stats.BytesReceived > uint64(len(packet.RawFrame())) {
		fmt.Printf("  (synchronized within %d bytes)\n", stats.BytesReceived)
	}
	os.Exit(0)

	return nil
}
