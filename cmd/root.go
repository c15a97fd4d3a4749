// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zettalabs/zettascope/internal/config"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Config and diagnostics
	configPath string
	logLevel   string

	cfg *config.Config
)

const defaultConfigPath = "zettascope.yaml"

var rootCmd = &cobra.Command{
	Use:   "zettascope",
	Short: "Zetta Serial Protocol Analyzer",
	Long: `Zettascope - A CLI tool for monitoring and exchanging Zetta protocol packets.

Provides commands for live packet monitoring, link testing, one-shot sends,
interactive consoles, and bridging a serial link onto WebSocket clients.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the ZETTA_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.2.0",
	PersistentPreRunE: setup,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+defaultConfigPath+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
}

// setup loads the config file and layers the command-line flags over it.
// An explicitly named config file must exist; the default path is optional.
func setup(cmd *cobra.Command, args []string) error {
	path := configPath
	optional := path == ""
	if optional {
		path = defaultConfigPath
	}

	var err error
	cfg, err = config.Load(path, optional)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
	} else {
		portName = cfg.Serial.Port
	}
	if flags.Changed("baud") {
		cfg.Serial.BaudRate = baudRate
	} else {
		baudRate = cfg.Serial.BaudRate
	}
	if flags.Changed("url") {
		cfg.Remote.URL = wsURL
	} else {
		wsURL = cfg.Remote.URL
	}
	if flags.Changed("username") {
		cfg.Remote.Username = wsUsername
	} else {
		wsUsername = cfg.Remote.Username
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Remote.NoSSLVerify = wsNoSSLVerify
	} else {
		wsNoSSLVerify = cfg.Remote.NoSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	return setupLogging(cfg.Logging)
}

// setupLogging configures the global zerolog logger. Diagnostics go to
// stderr so packet output on stdout stays machine-readable.
func setupLogging(lc config.LoggingConfig) error {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	if lc.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	} else {
		log.Logger = log.Output(os.Stderr)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
