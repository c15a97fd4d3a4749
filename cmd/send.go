// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zettalabs/zettascope/pkg/zetta"
)

var (
	sendType    uint8
	sendHex     bool
	sendAckWait int
)

var sendCmd = &cobra.Command{
	Use:   "send <payload>",
	Short: "Send a single packet over the connection",
	Long: `Encode the given payload into a Zetta frame and write it to the link.

The payload is taken as a literal string, or with --hex as hexadecimal bytes
(whitespace ignored): zettascope send --hex "DE AD BE EF". Payloads are
limited to 25 bytes by the protocol.

With --ack-wait the command then waits up to the given number of seconds for
an ACK packet (type 0x00) and fails if none arrives.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Uint8VarP(&sendType, "type", "t", zetta.MsgPublish, "Packet type byte")
	sendCmd.Flags().BoolVar(&sendHex, "hex", false, "Interpret the payload as hex bytes")
	sendCmd.Flags().IntVar(&sendAckWait, "ack-wait", 0, "Seconds to wait for an ACK (0 disables)")
}

func runSend(cmd *cobra.Command, args []string) error {
	payload := []byte(args[0])
	if sendHex {
		cleaned := strings.Join(strings.Fields(args[0]), "")
		decoded, err := hex.DecodeString(cleaned)
		if err != nil {
			return fmt.Errorf("invalid hex payload: %w", err)
		}
		payload = decoded
	}

	transport, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}

	var (
		errMu   sync.Mutex
		sendErr error
	)
	proto := newProtocol(transport,
		zetta.WithErrorCallback(func(err error) {
			errMu.Lock()
			if sendErr == nil {
				sendErr = err
			}
			errMu.Unlock()
			log.Debug().Err(err).Msg("protocol error")
		}),
	)

	// Only start the receive loop when an ACK is expected back.
	if sendAckWait > 0 {
		proto.Start()
		defer proto.Stop()
	} else {
		defer transport.Close()
	}

	if !proto.SendRaw(sendType, payload) {
		errMu.Lock()
		defer errMu.Unlock()
		return fmt.Errorf("send failed: %w", sendErr)
	}
	log.Info().Str("connection", connInfo).
		Uint8("type", sendType).Int("bytes", len(payload)).
		Msg("packet sent")

	if sendAckWait == 0 {
		return nil
	}

	deadline := time.Now().Add(time.Duration(sendAckWait) * time.Second)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			fmt.Fprintf(os.Stderr, "TIMEOUT: no ACK within %d seconds\n", sendAckWait)
			os.Exit(1)
		}

		packet := proto.GetPacket(remaining)
		if packet == nil {
			continue
		}
		if packet.Type() != zetta.MsgAck {
			log.Debug().Uint8("type", packet.Type()).Msg("ignoring non-ACK packet")
			continue
		}

		fmt.Printf("ACK received (%s)\n", zetta.FormatPacketType(packet.Type()))
		return nil
	}
}
