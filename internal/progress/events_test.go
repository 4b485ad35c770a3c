// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventType_String(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  string
	}{
		{eventType: EventQueueStarted, expected: "queue-started"},
		{eventType: EventStarted, expected: "started"},
		{eventType: EventOutput, expected: "output"},
		{eventType: EventCompleted, expected: "completed"},
		{eventType: EventFailed, expected: "failed"},
		{eventType: EventKilled, expected: "killed"},
		{eventType: EventQueueFinished, expected: "queue-finished"},
		{eventType: EventType(999), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.String())
		})
	}
}

func TestEvent_Queue(t *testing.T) {
	assert.Equal(t, "build", Event{CommandPath: []string{"build", "make"}}.Queue())
	assert.Empty(t, Event{}.Queue())
}

func TestNullReporter(t *testing.T) {
	reporter := NewNullReporter()
	require.NotNil(t, reporter)

	reporter.Report(Event{
		CommandPath: []string{"build"},
		Type:        EventStarted,
		Timestamp:   time.Now(),
	})

	reporter.Close()
}

func TestChannelReporter_Events(t *testing.T) {
	reporter := NewChannelReporter(context.Background(), 10)

	event := Event{
		CommandPath: []string{"build", "make all"},
		Type:        EventStarted,
		Message:     "make all",
		Timestamp:   time.Now(),
	}

	reporter.Report(event)

	select {
	case received := <-reporter.Events():
		assert.Equal(t, event.CommandPath, received.CommandPath)
		assert.Equal(t, event.Type, received.Type)
		assert.Equal(t, event.Message, received.Message)
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}

	reporter.Close()

	reporter.Report(Event{Type: EventCompleted, Message: "discarded"})

	_, open := <-reporter.Events()
	assert.False(t, open, "channel is closed and the late event was discarded")
	require.Error(t, reporter.Context().Err())
}

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (l *recordingListener) OnEvent(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
}

func TestChannelReporter_ListenDeliversEverythingInOrder(t *testing.T) {
	reporter := NewChannelReporter(context.Background(), 1)

	listener := &recordingListener{}
	reporter.Listen(listener)

	const total = 500

	for i := range total {
		reporter.Report(Event{Type: EventOutput, Data: EventData{ExitCode: i}})
	}

	reporter.Close()

	require.Len(t, listener.events, total, "a full buffer blocks rather than dropping")

	for i, event := range listener.events {
		assert.Equal(t, i, event.Data.ExitCode)
	}
}

func TestChannelReporter_CloseReleasesBlockedSenders(t *testing.T) {
	reporter := NewChannelReporter(context.Background(), 1)
	reporter.Report(Event{Type: EventStarted})

	sent := make(chan struct{})

	go func() {
		defer close(sent)
		reporter.Report(Event{Type: EventOutput})
	}()

	time.Sleep(20 * time.Millisecond)
	reporter.Close()

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("blocked sender was not released")
	}
}

func TestChannelReporter_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reporter := NewChannelReporter(ctx, 1)

	reporter.Report(Event{Type: EventStarted})
	cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)
		reporter.Report(Event{Type: EventOutput})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report blocked after the parent context was cancelled")
	}

	reporter.Close()
}

func TestListenerFunc(t *testing.T) {
	var got EventType

	var l Listener = ListenerFunc(func(e Event) { got = e.Type })
	l.OnEvent(Event{Type: EventKilled})

	assert.Equal(t, EventKilled, got)
}
