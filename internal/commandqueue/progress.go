// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandqueue

import (
	"fmt"
	"time"

	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/progress"
)

var (
	_ Listener         = (*ProgressListener)(nil)
	_ command.Listener = (*ProgressListener)(nil)
)

// ProgressListener turns the callbacks of one queue into progress events.
type ProgressListener struct {
	q        *Queue
	reporter progress.Reporter
}

// WithReporter reports the lifecycle of the queue and its commands to reporter.
func WithReporter(reporter progress.Reporter) Option {
	return func(q *Queue) {
		if reporter == nil {
			return
		}

		pl := &ProgressListener{q: q, reporter: reporter}
		q.listeners = append(q.listeners, pl)
		q.cmdListeners = append(q.cmdListeners, pl)
	}
}

// CommandQueueStarted implements Listener.
func (p *ProgressListener) CommandQueueStarted(q *Queue) {
	count := len(q.Commands())

	p.reporter.Report(progress.Event{
		CommandPath: []string{q.Label()},
		Type:        progress.EventQueueStarted,
		Message:     fmt.Sprintf("Starting queue with %d commands", count),
		Timestamp:   time.Now(),
		Data:        progress.EventData{CommandCount: count},
	})
}

// CommandQueueFinished implements Listener.
func (p *ProgressListener) CommandQueueFinished(q *Queue) {
	status := q.Status()

	p.reporter.Report(progress.Event{
		CommandPath: []string{q.Label()},
		Type:        progress.EventQueueFinished,
		Message:     "Queue finished with status " + status.String(),
		Timestamp:   time.Now(),
		Data:        progress.EventData{Status: status.String(), CommandCount: len(q.Commands())},
	})
}

// CommandQueueIsProcessing implements Listener.
func (p *ProgressListener) CommandQueueIsProcessing(c *command.Command) {
	p.reporter.Report(p.commandEvent(c, progress.EventStarted, "Starting "+c.String(), progress.EventData{}))
}

// CommandOutput implements command.Listener.
func (p *ProgressListener) CommandOutput(c *command.Command, line string) {
	p.reporter.Report(p.commandEvent(c, progress.EventOutput, line, progress.EventData{OutputLine: line}))
}

// CommandExecuted implements command.Listener.
func (p *ProgressListener) CommandExecuted(c *command.Command) {
	status := c.Status()
	data := progress.EventData{Status: status.String(), ExitCode: c.ExitCode()}

	var (
		eventType progress.EventType
		msg       string
	)

	switch status {
	case command.StatusOK:
		eventType, msg = progress.EventCompleted, "Command completed successfully"
	case command.StatusFail:
		eventType, msg = progress.EventFailed, "Command failed"
	default:
		eventType, msg = progress.EventKilled, "Command was killed"
	}

	p.reporter.Report(p.commandEvent(c, eventType, msg, data))
}

func (p *ProgressListener) commandEvent(
	c *command.Command, eventType progress.EventType, msg string, data progress.EventData,
) progress.Event {
	data.Index = p.q.IndexOf(c)

	return progress.Event{
		CommandPath: []string{p.q.Label(), c.String()},
		Type:        eventType,
		Message:     msg,
		Timestamp:   time.Now(),
		Data:        data,
	}
}
