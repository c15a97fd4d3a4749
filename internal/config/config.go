// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

// Package config loads the zettascope CLI configuration from a YAML file.
// Every field has a usable default so the tools run with no file at all;
// command-line flags override whatever the file supplies.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete zettascope configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Remote   RemoteConfig   `yaml:"remote"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SerialConfig describes the local serial link.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`    // none, odd, even
	StopBits int    `yaml:"stop_bits"` // 1 or 2
}

// ProtocolConfig tunes the packet engine.
type ProtocolConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
	ReadTimeoutMs  int `yaml:"read_timeout_ms"`
	QueueCapacity  int `yaml:"queue_capacity"` // 0 means unbounded
}

// RemoteConfig describes a WebSocket endpoint serving the byte stream.
type RemoteConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// BridgeConfig configures the serial-to-WebSocket bridge server.
type BridgeConfig struct {
	Listen   string `yaml:"listen"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Metrics  bool   `yaml:"metrics"`
}

// LoggingConfig controls the diagnostic log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate: 115200,
			DataBits: 8,
			Parity:   "none",
			StopBits: 1,
		},
		Protocol: ProtocolConfig{
			PollIntervalMs: 1,
			ReadTimeoutMs:  20,
			QueueCapacity:  0,
		},
		Bridge: BridgeConfig{
			Listen:  ":8343",
			Metrics: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and parses the configuration file at path, layering its values
// over the defaults. A missing file is not an error when optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Serial.Validate(); err != nil {
		return fmt.Errorf("serial config: %w", err)
	}

	if err := c.Protocol.Validate(); err != nil {
		return fmt.Errorf("protocol config: %w", err)
	}

	if err := c.Bridge.Validate(); err != nil {
		return fmt.Errorf("bridge config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the serial link settings.
func (s *SerialConfig) Validate() error {
	if s.BaudRate < 1 {
		return fmt.Errorf("baud_rate must be positive, got %d", s.BaudRate)
	}

	if s.DataBits < 5 || s.DataBits > 8 {
		return fmt.Errorf("data_bits must be between 5 and 8, got %d", s.DataBits)
	}

	switch s.Parity {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("parity must be one of [none, odd, even], got '%s'", s.Parity)
	}

	if s.StopBits != 1 && s.StopBits != 2 {
		return fmt.Errorf("stop_bits must be 1 or 2, got %d", s.StopBits)
	}

	return nil
}

// Validate validates the protocol engine settings.
func (p *ProtocolConfig) Validate() error {
	if p.PollIntervalMs < 1 {
		return fmt.Errorf("poll_interval_ms must be at least 1, got %d", p.PollIntervalMs)
	}

	if p.ReadTimeoutMs < 1 {
		return fmt.Errorf("read_timeout_ms must be at least 1, got %d", p.ReadTimeoutMs)
	}

	if p.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity cannot be negative, got %d", p.QueueCapacity)
	}

	return nil
}

// Validate validates the bridge server settings.
func (b *BridgeConfig) Validate() error {
	if b.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if b.Password != "" && b.Username == "" {
		return fmt.Errorf("password set without a username")
	}

	return nil
}

// Validate validates the logging settings.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	switch l.Format {
	case "console", "json":
	default:
		return fmt.Errorf("format must be 'console' or 'json', got '%s'", l.Format)
	}

	return nil
}

// PollInterval returns the receive loop poll interval as a time.Duration.
func (p *ProtocolConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// ReadTimeout returns the serial read timeout as a time.Duration.
func (p *ProtocolConfig) ReadTimeout() time.Duration {
	return time.Duration(p.ReadTimeoutMs) * time.Millisecond
}
