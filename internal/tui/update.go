// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/progress"
)

const (
	minStatusBarAvailableHeight = 10
	minViewportWidth            = 20
	reservedLines               = 6 // title, border and footer
	commandDurationRounding     = 100 * time.Millisecond
	ellipsis                    = "…"
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// CompletedMsg indicates that every queue has stopped.
type CompletedMsg struct {
	Status command.Status
}

type killDoneMsg struct {
	err error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(commandDurationRounding, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return tick()
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	m.mutex.Lock()
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	m.mutex.Unlock()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		keyCmd := m.handleKeyPress(msg)
		return m, tea.Batch(cmd, keyCmd)

	case tea.WindowSizeMsg:
		m.mutex.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.updateViewportSize()
		m.mutex.Unlock()

		return m, cmd

	case ProgressEventMsg:
		m.processProgressEvent(msg.Event)
		return m, cmd

	case CompletedMsg:
		m.mutex.Lock()
		m.completed = true
		m.status = msg.Status
		m.mutex.Unlock()

		return m, cmd

	case killDoneMsg:
		m.mutex.Lock()
		m.killErr = msg.err
		m.mutex.Unlock()

		return m, cmd

	case tickMsg:
		m.mutex.RLock()
		completed := m.completed
		m.mutex.RUnlock()

		if completed {
			return m, cmd
		}

		return m, tea.Batch(cmd, tick())
	}

	return m, cmd
}

// updateViewportSize fits the viewport to the window. Callers hold the lock.
func (m *Model) updateViewportSize() {
	width := max(m.width-2, minViewportWidth) //nolint:mnd
	height := max(m.height-reservedLines, 1)

	if !m.ready {
		m.viewport = viewport.New(width, height)
		m.ready = true

		return
	}

	m.viewport.Width = width
	m.viewport.Height = height
}

// handleKeyPress processes keys not consumed by the viewport.
func (m *Model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit

	case "s":
		if m.completed || m.stopping || m.controller == nil {
			return nil
		}

		m.stopping = true
		m.controller.StopAll()

	case "k":
		if m.completed || m.killing || m.controller == nil {
			return nil
		}

		m.killing = true
		c, ctx := m.controller, m.ctx

		// A kill waits for the process to exit, and the queues report back through this program.
		return func() tea.Msg {
			return killDoneMsg{err: c.KillAll(ctx)}
		}
	}

	return nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	var content strings.Builder

	m.renderTree(&content)

	if m.completed {
		content.WriteString("\n")

		switch m.status {
		case command.StatusOK:
			content.WriteString(m.styles.Success.Render("✓ All commands completed successfully"))
		case command.StatusFail:
			content.WriteString(m.styles.Failed.Render("✗ Finished with failures"))
		default:
			content.WriteString(m.styles.Idle.Render("~ Stopped before every command ran"))
		}

		content.WriteString("\n")
	}

	var view strings.Builder

	view.WriteString(m.styles.Title.Render("cmdrunner"))
	view.WriteString("\n")

	if m.ready {
		m.viewport.SetContent(content.String())
		view.WriteString(m.styles.Border.Render(m.viewport.View()))
	} else {
		view.WriteString(content.String())
	}

	if !m.ready || m.height > minStatusBarAvailableHeight {
		view.WriteString("\n")
		view.WriteString(m.renderStatusBar())
		view.WriteString("\n")

		help := "↑/↓ to scroll, 's' to stop after the current commands, 'k' to kill, 'q' to quit"
		if m.completed {
			help = "↑/↓ to scroll, 'q' to quit and return to terminal"
		}

		view.WriteString(m.styles.Help.Render(help))
	}

	return view.String()
}

// renderStatusBar summarises the commands seen so far. Callers hold the lock.
func (m *Model) renderStatusBar() string {
	counts := map[command.Status]int{}
	total := 0

	for _, q := range m.queues {
		for _, c := range q.Children {
			counts[c.GetDisplayInfo(m.now()).Status]++
			total++
		}
	}

	state := "running"

	switch {
	case m.completed:
		state = "finished"
	case m.killing:
		state = "killing"
	case m.stopping:
		state = "stopping"
	}

	bar := fmt.Sprintf("%s | %d queues | %d commands | %d running | %d ok | %d failed",
		state, len(m.queues), total,
		counts[command.StatusRunning], counts[command.StatusOK], counts[command.StatusFail])

	if m.killErr != nil {
		bar += " | kill: " + m.killErr.Error()
	}

	return m.styles.StatusBar.Render(bar)
}

// renderTree renders every queue with its commands below it. Callers hold the lock.
func (m *Model) renderTree(b *strings.Builder) {
	for i, q := range m.queues {
		last := i == len(m.queues)-1
		m.renderNode(b, q, "", last)

		childPrefix := "│   "
		if last {
			childPrefix = "    "
		}

		for j, c := range q.Children {
			m.renderNode(b, c, childPrefix, j == len(q.Children)-1)
		}
	}
}

func (m *Model) statusIcon(info DisplayInfo) (string, lipgloss.Style) {
	switch {
	case info.Killed:
		return "☠", m.styles.Failed
	case info.Status == command.StatusRunning:
		return "⚡", m.styles.Running
	case info.Status == command.StatusOK:
		return "✓", m.styles.Success
	case info.Status == command.StatusFail:
		return "✗", m.styles.Failed
	case info.Started:
		return "~", m.styles.Idle
	default:
		return "·", m.styles.Idle
	}
}

// renderNode renders one line: icon, name, elapsed time and, while running, the last output line.
func (m *Model) renderNode(b *strings.Builder, node *CommandNode, prefix string, isLast bool) {
	info := node.GetDisplayInfo(m.now())

	connector := "├── "
	if isLast {
		connector = "└── "
	}

	icon, style := m.statusIcon(info)

	left := fmt.Sprintf("%s %s", icon, info.Name)

	if info.Started {
		left += fmt.Sprintf(" (%v)", info.Elapsed.Round(commandDurationRounding))
	}

	if info.ExitCode > 0 {
		left += fmt.Sprintf(" [exit %d]", info.ExitCode)
	}

	var right string
	if info.Status == command.StatusRunning || info.Status == command.StatusFail {
		right = info.LastOutput
	}

	available := max(m.viewport.Width-lipgloss.Width(prefix+connector)-2, minViewportWidth) //nolint:mnd
	leftWidth := available / 2                                                             //nolint:mnd
	rightWidth := available - leftWidth

	left = truncate(left, leftWidth)
	right = truncate(right, rightWidth)

	b.WriteString(m.styles.TreeBranch.Render(prefix + connector))
	b.WriteString(style.Render(left))

	if right != "" {
		b.WriteString(strings.Repeat(" ", leftWidth-lipgloss.Width(left)))
		b.WriteString(m.styles.Output.Render(right))
	}

	b.WriteString("\n")
}

// truncate shortens s to width cells.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}

	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+lipgloss.Width(ellipsis) > width {
		runes = runes[:len(runes)-1]
	}

	return string(runes) + ellipsis
}
