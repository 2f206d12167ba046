// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 deflucaseng

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deflucaseng/BiDShot/pkg/dshot"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	throttleStep = 50 // throttle delta per +/- keypress
	beepBurst    = 10 // beep commands queued per 'b' keypress
)

// Focus states
const (
	focusNone = iota
	focusThrottleInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// eventLogEntry is one line in the scrolling event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Protocol driver (for throttle changes and command queueing)
	drv     *escDriver
	rigInfo string
	maxRPM  float64

	// Latest driver snapshot
	telem     dshot.Telemetry
	throttle  uint16
	arming    bool
	simRPM    uint32
	simFrames uint64
	simBad    uint64

	// Frame rate, recalculated on each tick
	frameRate      float64
	lastFrameCount uint32
	lastTick       time.Time

	// Control
	throttleInput textinput.Model
	rpmBar        progress.Model
	focusedField  int

	// Event log
	eventLog      []eventLogEntry
	maxLogEntries int

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

// controlBatchMsg carries one driver snapshot to the TUI
type controlBatchMsg struct {
	telem     dshot.Telemetry
	fresh     bool
	throttle  uint16
	arming    bool
	simRPM    uint32
	simFrames uint64
	simBad    uint64
}

type driverLogMsg struct {
	message string
	isError bool
}

type armCompleteMsg struct{}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(drv *escDriver, rigInfo string, maxRPM float64) controlModel {
	// Initialize text input for exact throttle entry
	ti := textinput.New()
	ti.Placeholder = "1048"
	ti.CharLimit = 4
	ti.Width = 6

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	return controlModel{
		drv:           drv,
		rigInfo:       rigInfo,
		maxRPM:        maxRPM,
		throttle:      dshot.ThrottleMin,
		throttleInput: ti,
		rpmBar:        bar,
		focusedField:  focusNone,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		lastTick:      time.Now(),
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		now := time.Time(msg)
		if dt := now.Sub(m.lastTick).Seconds(); dt > 0 {
			m.frameRate = float64(m.telem.FrameCount-m.lastFrameCount) / dt
		}
		m.lastFrameCount = m.telem.FrameCount
		m.lastTick = now
		return m, controlTickCmd()

	case controlBatchMsg:
		m.telem = msg.telem
		m.throttle = msg.throttle
		m.arming = msg.arming
		m.simRPM = msg.simRPM
		m.simFrames = msg.simFrames
		m.simBad = msg.simBad

	case driverLogMsg:
		m.addLogEntry(msg.message, msg.isError)

	case armCompleteMsg:
		m.addLogEntry("Arm sequence complete", false)
	}

	// Pass everything else to the input while it has focus
	if m.focusedField == focusThrottleInput {
		var cmd tea.Cmd
		m.throttleInput, cmd = m.throttleInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While the throttle input has focus, only enter/esc act as controls
	if m.focusedField == focusThrottleInput {
		switch msg.String() {
		case "enter":
			m.applyThrottleInput()
			return m, nil

		case "esc", "tab":
			m.throttleInput.Blur()
			m.focusedField = focusNone
			return m, nil

		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.throttleInput, cmd = m.throttleInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "t", "tab":
		m.focusedField = focusThrottleInput
		m.throttleInput.Focus()
		return m, textinput.Blink

	case "+", "=":
		v := m.drv.adjustThrottle(throttleStep)
		m.addLogEntry(fmt.Sprintf("Throttle set to %d", v), false)

	case "-", "_":
		v := m.drv.adjustThrottle(-throttleStep)
		m.addLogEntry(fmt.Sprintf("Throttle set to %d", v), false)

	case "0":
		m.drv.setThrottle(dshot.ThrottleMin)
		m.addLogEntry("Throttle cut to minimum", false)

	case "a":
		m.drv.startArm()
		m.addLogEntry("Arming: zero-throttle burst, then beeps", false)

	case "b":
		m.drv.queueBeeps(beepBurst)
		m.addLogEntry(fmt.Sprintf("Queued %d beep commands", beepBurst), false)

	case "s":
		m.addLogEntry(fmt.Sprintf("Stats: %d frames, %d ok, %d errors (%.1f%% success)",
			m.telem.FrameCount, m.telem.SuccessCount, m.telem.ErrorCount, m.telem.SuccessRate()), false)
	}

	return m, nil
}

// applyThrottleInput parses the typed value and hands it to the driver
func (m *controlModel) applyThrottleInput() {
	raw := strings.TrimSpace(m.throttleInput.Value())
	m.throttleInput.Blur()
	m.throttleInput.SetValue("")
	m.focusedField = focusNone

	if raw == "" {
		return
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		m.addLogEntry(fmt.Sprintf("Invalid throttle %q", raw), true)
		return
	}

	applied := m.drv.setThrottle(uint16(v))
	if int(applied) != v {
		m.addLogEntry(fmt.Sprintf("Throttle %d clamped to %d", v, applied), false)
	} else {
		m.addLogEntry(fmt.Sprintf("Throttle set to %d", applied), false)
	}
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	helpText := "q=quit t=type +/-=step 0=stop a=arm b=beep s=stats"
	s.WriteString(titleStyle.Render("BIDSHOT CONTROL"))
	s.WriteString(" ")
	status := m.rigInfo
	if m.arming {
		status = warningStyle.Render("ARMING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", status, helpText)))
	s.WriteString("\n\n")

	// Throttle and telemetry panels side by side
	throttlePanel := m.renderThrottlePanel(statsLabelStyle, statsValueStyle, headerStyle, boxStyle, focusedBoxStyle)
	telemetryPanel := m.renderTelemetryPanel(statsLabelStyle, statsValueStyle, warningStyle, boxStyle)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, throttlePanel, " ", telemetryPanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderThrottlePanel(statsLabelStyle, statsValueStyle, headerStyle, boxStyle, focusedBoxStyle lipgloss.Style) string {
	var s strings.Builder

	s.WriteString(statsLabelStyle.Render("THROTTLE"))
	s.WriteString("\n\n")

	s.WriteString(fmt.Sprintf("%s %s / %d\n",
		statsLabelStyle.Render("Command:"),
		statsValueStyle.Render(fmt.Sprintf("%d", m.throttle)),
		dshot.ThrottleMax))

	if m.throttle <= dshot.ThrottleMin {
		s.WriteString(headerStyle.Render("motor stopped"))
	}
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Set: "))
	if m.focusedField == focusThrottleInput {
		s.WriteString(m.throttleInput.View())
	} else {
		// Show as plain text when not focused
		val := m.throttleInput.Value()
		if val == "" {
			val = m.throttleInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}

	style := boxStyle.Width(30)
	if m.focusedField == focusThrottleInput {
		style = focusedBoxStyle.Width(30)
	}
	return style.Render(s.String())
}

func (m controlModel) renderTelemetryPanel(statsLabelStyle, statsValueStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder

	s.WriteString(statsLabelStyle.Render("TELEMETRY"))
	s.WriteString("\n\n")

	if !m.telem.Valid {
		s.WriteString(warningStyle.Render("No valid response decoded yet"))
		s.WriteString("\n\n")
	} else {
		percent := float64(m.telem.RPM) / m.maxRPM
		if percent > 1 {
			percent = 1
		}
		s.WriteString(m.rpmBar.ViewAs(percent))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s\n",
			statsLabelStyle.Render("RPM:"), statsValueStyle.Render(fmt.Sprintf("%d", m.telem.RPM)),
			statsLabelStyle.Render("eRPM:"), statsValueStyle.Render(fmt.Sprintf("%d", m.telem.ERPM)),
			statsLabelStyle.Render("Period:"), statsValueStyle.Render(fmt.Sprintf("%dus", m.telem.PeriodMicros))))
	}

	s.WriteString(fmt.Sprintf("%s %d RPM actual, %d frames seen",
		statsLabelStyle.Render("Sim:"), m.simRPM, m.simFrames))
	if m.simBad > 0 {
		s.WriteString(fmt.Sprintf(", %d bad", m.simBad))
	}

	width := m.width - 30 - 6
	if width < 44 {
		width = 44
	}
	return boxStyle.Width(width).Render(s.String())
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.telem.FrameCount)),
		statsLabelStyle.Render("Success:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", m.telem.SuccessRate())),
		statsLabelStyle.Render("Errors:"), func() string {
			if m.telem.ErrorCount > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.telem.ErrorCount))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.frameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	// Calculate available height for log
	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}
