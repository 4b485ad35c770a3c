// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/progress"
)

// Controller stops or kills the queues shown by the model.
// *commandqueue.Group satisfies it.
type Controller interface {
	StopAll()
	KillAll(ctx context.Context) error
}

// CommandNode is a queue, or a command within a queue, in the display tree.
type CommandNode struct {
	Name       string
	Status     command.Status
	Killed     bool
	ExitCode   int
	StartTime  *time.Time
	EndTime    *time.Time
	LastOutput string
	Children   []*CommandNode
	mutex      sync.RWMutex
}

// NewCommandNode creates an idle node.
func NewCommandNode(name string) *CommandNode {
	return &CommandNode{
		Name:     name,
		Status:   command.StatusIdle,
		ExitCode: -1,
	}
}

// UpdateStatus sets the status, recording the start and end times on the way.
func (cn *CommandNode) UpdateStatus(status command.Status, at time.Time) {
	cn.mutex.Lock()
	defer cn.mutex.Unlock()

	cn.Status = status

	switch status {
	case command.StatusRunning:
		if cn.StartTime == nil {
			cn.StartTime = &at
		}
	case command.StatusOK, command.StatusFail:
		if cn.EndTime == nil {
			cn.EndTime = &at
		}
	case command.StatusIdle:
		if cn.StartTime != nil && cn.EndTime == nil {
			cn.EndTime = &at
		}
	}
}

// UpdateOutput keeps the last non-blank line of output.
func (cn *CommandNode) UpdateOutput(output string) {
	cn.mutex.Lock()
	defer cn.mutex.Unlock()

	if line := strings.TrimSpace(output); line != "" {
		cn.LastOutput = line
	}
}

// MarkKilled flags the node as killed and ends it.
func (cn *CommandNode) MarkKilled(at time.Time) {
	cn.UpdateStatus(command.StatusIdle, at)

	cn.mutex.Lock()
	defer cn.mutex.Unlock()

	cn.Killed = true
}

// SetExitCode records the exit code of a finished command.
func (cn *CommandNode) SetExitCode(code int) {
	cn.mutex.Lock()
	defer cn.mutex.Unlock()

	cn.ExitCode = code
}

// DisplayInfo is a consistent copy of the fields a node is rendered from.
type DisplayInfo struct {
	Name       string
	Status     command.Status
	Killed     bool
	ExitCode   int
	LastOutput string
	Elapsed    time.Duration
	Started    bool
}

// GetDisplayInfo returns the display fields, with the elapsed time measured up to now while running.
func (cn *CommandNode) GetDisplayInfo(now time.Time) DisplayInfo {
	cn.mutex.RLock()
	defer cn.mutex.RUnlock()

	info := DisplayInfo{
		Name:       cn.Name,
		Status:     cn.Status,
		Killed:     cn.Killed,
		ExitCode:   cn.ExitCode,
		LastOutput: cn.LastOutput,
		Started:    cn.StartTime != nil,
	}

	if cn.StartTime != nil {
		end := now
		if cn.EndTime != nil {
			end = *cn.EndTime
		}

		info.Elapsed = end.Sub(*cn.StartTime)
	}

	return info
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context //nolint:containedctx
	controller Controller
	queues     []*CommandNode
	queueMap   map[string]*CommandNode
	commandMap map[string]*CommandNode
	width      int
	height     int
	viewport   viewport.Model
	ready      bool
	quitting   bool
	stopping   bool
	killing    bool
	completed  bool
	status     command.Status
	killErr    error
	now        func() time.Time
	mutex      sync.RWMutex

	styles *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title      lipgloss.Style
	Idle       lipgloss.Style
	Running    lipgloss.Style
	Success    lipgloss.Style
	Failed     lipgloss.Style
	Output     lipgloss.Style
	Help       lipgloss.Style
	StatusBar  lipgloss.Style
	TreeBranch lipgloss.Style
	Border     lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		Idle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("8")).
			Padding(0, 1),
		TreeBranch: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")),
	}
}

// NewModel creates a new TUI model.
func NewModel(ctx context.Context) *Model {
	return &Model{
		ctx:        ctx,
		queueMap:   make(map[string]*CommandNode),
		commandMap: make(map[string]*CommandNode),
		status:     command.StatusRunning,
		now:        time.Now,
		styles:     NewStyles(),
	}
}

// SetController sets what the stop and kill keys act on.
func (m *Model) SetController(c Controller) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.controller = c
}

// Queues returns the queue nodes in the order they started.
func (m *Model) Queues() []*CommandNode {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return append([]*CommandNode(nil), m.queues...)
}

func commandKey(queue string, index int) string {
	return queue + "#" + strconv.Itoa(index)
}

// queueNode returns the node for a queue label, creating it if needed. Callers hold the lock.
func (m *Model) queueNode(label string) *CommandNode {
	if node, ok := m.queueMap[label]; ok {
		return node
	}

	node := NewCommandNode(label)
	m.queueMap[label] = node
	m.queues = append(m.queues, node)

	return node
}

// commandNode returns the node for a command event, creating it if needed. Callers hold the lock.
func (m *Model) commandNode(event progress.Event) *CommandNode {
	key := commandKey(event.Queue(), event.Data.Index)
	if node, ok := m.commandMap[key]; ok {
		return node
	}

	name := "unknown"
	if len(event.CommandPath) > 1 {
		name = event.CommandPath[len(event.CommandPath)-1]
	}

	node := NewCommandNode(name)
	m.commandMap[key] = node

	parent := m.queueNode(event.Queue())
	parent.Children = append(parent.Children, node)

	return node
}

// processProgressEvent applies one event to the tree.
func (m *Model) processProgressEvent(event progress.Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	at := event.Timestamp
	if at.IsZero() {
		at = m.now()
	}

	switch event.Type {
	case progress.EventQueueStarted:
		m.queueNode(event.Queue()).UpdateStatus(command.StatusRunning, at)

	case progress.EventQueueFinished:
		status, ok := command.ParseStatus(event.Data.Status)
		if !ok {
			status = command.StatusIdle
		}

		m.queueNode(event.Queue()).UpdateStatus(status, at)

	case progress.EventStarted:
		m.commandNode(event).UpdateStatus(command.StatusRunning, at)

	case progress.EventOutput:
		m.commandNode(event).UpdateOutput(event.Data.OutputLine)

	case progress.EventCompleted:
		node := m.commandNode(event)
		node.SetExitCode(event.Data.ExitCode)
		node.UpdateStatus(command.StatusOK, at)

	case progress.EventFailed:
		node := m.commandNode(event)
		node.SetExitCode(event.Data.ExitCode)
		node.UpdateStatus(command.StatusFail, at)

	case progress.EventKilled:
		m.commandNode(event).MarkKilled(at)
	}
}
