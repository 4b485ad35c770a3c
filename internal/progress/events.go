// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event is a real-time update from a queue or one of its commands.
type Event struct {
	// CommandPath locates the subject: [queue] for queue events, [queue, command line] for command events.
	CommandPath []string
	Type        EventType
	Message     string
	Timestamp   time.Time
	Data        EventData
}

// Queue returns the queue label of the event.
func (e Event) Queue() string {
	if len(e.CommandPath) == 0 {
		return ""
	}

	return e.CommandPath[0]
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventQueueStarted indicates a queue was started.
	EventQueueStarted EventType = iota
	// EventStarted indicates a command has been dispatched.
	EventStarted
	// EventOutput indicates a command wrote a line.
	EventOutput
	// EventCompleted indicates a command exited with code 0.
	EventCompleted
	// EventFailed indicates a command failed.
	EventFailed
	// EventKilled indicates a command was killed before it exited on its own.
	EventKilled
	// EventQueueFinished indicates a queue stopped.
	EventQueueFinished
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventQueueStarted:
		return "queue-started"
	case EventStarted:
		return "started"
	case EventOutput:
		return "output"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventKilled:
		return "killed"
	case EventQueueFinished:
		return "queue-finished"
	default:
		return "unknown"
	}
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// Index is the position of the command in its queue, for command events.
	Index int

	// For EventOutput
	OutputLine string

	// For EventCompleted, EventFailed, EventKilled and EventQueueFinished
	Status   string
	ExitCode int

	// For EventQueueStarted
	CommandCount int
}

// Reporter sends progress events.
type Reporter interface {
	// Report sends a progress event.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events.
type Listener interface {
	// OnEvent is called for every event, in the order reported.
	OnEvent(event Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(event Event)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// NullReporter is a no-op implementation of Reporter.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (nr *NullReporter) Report(_ Event) {}

// Close implements Reporter.Close by doing nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}
