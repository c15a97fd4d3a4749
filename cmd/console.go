// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zettalabs/zettascope/pkg/zetta"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive packet console",
	Long: `Open an interactive terminal session on the link.

Received packets scroll by as they arrive; the input line sends packets:

  hello world        send "hello world" as a PUBLISH (type 0x01) packet
  x:DEADBEEF         send hex bytes as a PUBLISH packet
  !2A hello          send "hello" with type 0x2A
  !00 x:             send an empty ACK packet

Press Esc or Ctrl+C to exit.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// History entry directions
const (
	dirSent = iota
	dirReceived
	dirError
)

type consoleEntry struct {
	timestamp time.Time
	direction int
	text      string
}

type consoleModel struct {
	proto    *zetta.Protocol
	connInfo string

	input      textinput.Model
	history    []consoleEntry
	maxHistory int

	width    int
	height   int
	quitting bool
}

type consolePacketMsg struct{ packet *zetta.Packet }
type consoleErrorMsg struct{ err error }

func initialConsoleModel(proto *zetta.Protocol, connInfo string) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "payload, x:HEX, or !TYPE payload"
	ti.CharLimit = 128
	ti.Focus()

	return consoleModel{
		proto:      proto,
		connInfo:   connInfo,
		input:      ti,
		history:    make([]consoleEntry, 0),
		maxHistory: 200,
		width:      80,
		height:     24,
	}
}

// parseConsoleInput turns an input line into a packet type and payload.
func parseConsoleInput(line string) (uint8, []byte, error) {
	line = strings.TrimSpace(line)

	msgType := uint8(zetta.MsgPublish)
	if strings.HasPrefix(line, "!") {
		fields := strings.SplitN(line[1:], " ", 2)
		t, err := strconv.ParseUint(fields[0], 16, 8)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid type %q: expected hex byte", fields[0])
		}
		msgType = uint8(t)
		line = ""
		if len(fields) == 2 {
			line = strings.TrimSpace(fields[1])
		}
	}

	if strings.HasPrefix(line, "x:") {
		cleaned := strings.Join(strings.Fields(line[2:]), "")
		payload, err := hex.DecodeString(cleaned)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return msgType, payload, nil
	}

	return msgType, []byte(line), nil
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tea.EnterAltScreen,
	)
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			line := m.input.Value()
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			m.input.SetValue("")

			msgType, payload, err := parseConsoleInput(line)
			if err != nil {
				m.addEntry(dirError, err.Error())
				return m, nil
			}

			// SendRaw failures land in the error callback too; report
			// the attempt inline so the history reads chronologically.
			if m.proto.SendRaw(msgType, payload) {
				m.addEntry(dirSent, fmt.Sprintf("%s (%d bytes)",
					zetta.FormatPacketType(msgType), len(payload)))
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case consolePacketMsg:
		m.addEntry(dirReceived, strings.TrimRight(zetta.FormatPacket(msg.packet), "\n"))

	case consoleErrorMsg:
		m.addEntry(dirError, msg.err.Error())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *consoleModel) addEntry(direction int, text string) {
	m.history = append(m.history, consoleEntry{
		timestamp: time.Now(),
		direction: direction,
		text:      text,
	})
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	sentStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("14"))

	receivedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("ZETTASCOPE - CONSOLE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(m.connInfo + " | Esc to quit"))
	s.WriteString("\n\n")

	// Scrollback
	historyHeight := m.height - 9
	if historyHeight < 5 {
		historyHeight = 5
	}

	historyContent := strings.Builder{}
	startIdx := len(m.history) - historyHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.history) == 0 {
		historyContent.WriteString(headerStyle.Render("  (nothing yet)"))
	} else {
		for i := startIdx; i < len(m.history); i++ {
			entry := m.history[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			var line string
			switch entry.direction {
			case dirSent:
				line = sentStyle.Render("→ " + entry.text)
			case dirReceived:
				line = receivedStyle.Render("← " + entry.text)
			default:
				line = errorStyle.Render("✗ " + entry.text)
			}
			historyContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), line))
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(historyContent.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n")

	return s.String()
}

func runConsole(cmd *cobra.Command, args []string) error {
	transport, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}

	var p *tea.Program
	proto := newProtocol(transport,
		zetta.WithReceiveCallback(func(pkt *zetta.Packet) {
			p.Send(consolePacketMsg{packet: pkt})
		}),
		zetta.WithErrorCallback(func(err error) {
			p.Send(consoleErrorMsg{err: err})
		}),
	)
	p = tea.NewProgram(initialConsoleModel(proto, connInfo))

	proto.Start()
	defer proto.Stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
