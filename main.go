// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs
//
// Zettascope - Zetta Serial Protocol Analyzer
//
// A CLI tool for monitoring, sending, and bridging Zetta protocol packets.

package main

import (
	"os"

	"github.com/zettalabs/zettascope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
