// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zettalabs/zettascope/pkg/zetta"
)

var watchShowAll bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Full-screen dashboard of link statistics and events",
	Long: `Monitor the link in a full-screen terminal UI.

Shows live packet and error counters, rates, and a scrolling log of recent
events. By default only errors are logged; use --show-all to log every
received packet as well.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchShowAll, "show-all", false, "Log all packets (not just errors)")
}

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// watchModel is the Bubble Tea model for the statistics dashboard.
type watchModel struct {
	proto    *zetta.Protocol
	connInfo string
	showAll  bool

	snapshot      zetta.Snapshot
	eventLog      []eventLogEntry
	maxLogEntries int
	queueLen      int

	width    int
	height   int
	quitting bool
}

// Messages
type watchTickMsg time.Time
type watchPacketMsg struct{ packet *zetta.Packet }
type watchErrorMsg struct{ err error }

func initialWatchModel(proto *zetta.Protocol, connInfo string, showAll bool) watchModel {
	return watchModel{
		proto:         proto,
		connInfo:      connInfo,
		showAll:       showAll,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		watchTickCmd(),
		tea.EnterAltScreen,
	)
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watchTickMsg:
		m.snapshot = m.proto.Stats()
		m.queueLen = m.proto.QueueLen()
		// The dashboard is the only consumer here.
		m.proto.Flush()
		return m, watchTickCmd()

	case watchPacketMsg:
		if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s (%d bytes)",
				zetta.FormatPacketType(msg.packet.Type()), len(msg.packet.Payload())), false)
		}

	case watchErrorMsg:
		m.addLogEntry(strings.ToUpper(msg.err.Error()[:1])+msg.err.Error()[1:], true)
	}

	return m, nil
}

func (m *watchModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("ZETTASCOPE - LINK WATCH"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All packets"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	// Statistics
	snap := m.snapshot
	totalErrors := snap.CRCErrors + snap.FrameErrors

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Received:"), valueStyle.Render(fmt.Sprintf("%d", snap.PacketsReceived)),
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", snap.PacketsSent)),
		labelStyle.Render("Errors:"), func() string {
			if totalErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", totalErrors))
			}
			return valueStyle.Render("0")
		}(),
	))

	if totalErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", snap.CRCErrors)),
			labelStyle.Render("Frame Errors:"), errorStyle.Render(fmt.Sprintf("%d", snap.FrameErrors)),
		))
	}

	if snap.QueueDrops > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Queue Drops:"), warningStyle.Render(fmt.Sprintf("%d", snap.QueueDrops)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Bytes:"), valueStyle.Render(fmt.Sprintf("%d", snap.BytesReceived)),
		labelStyle.Render("Queued:"), valueStyle.Render(fmt.Sprintf("%d", m.queueLen)),
	))

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Packet Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pkts/s", snap.PacketRate())),
		labelStyle.Render("Error Rate:"), func() string {
			if snap.ErrorRate() > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate()))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate()))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 12 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					valueStyle.Render("• "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	transport, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}

	// Callbacks fire only after Start, so assigning p first is safe.
	var p *tea.Program
	proto := newProtocol(transport,
		zetta.WithReceiveCallback(func(pkt *zetta.Packet) {
			p.Send(watchPacketMsg{packet: pkt})
		}),
		zetta.WithErrorCallback(func(err error) {
			p.Send(watchErrorMsg{err: err})
		}),
	)
	p = tea.NewProgram(initialWatchModel(proto, connInfo, watchShowAll))

	proto.Start()
	defer proto.Stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
