// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"
)

// ChannelReporter implements Reporter with a bounded channel.
// Report blocks while the channel is full, so output lines are never dropped;
// a slow consumer slows the producers down instead.
type ChannelReporter struct {
	ch     chan Event
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex // held for reading while sending, for writing while closing
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// NewChannelReporter creates a new ChannelReporter with the specified buffer size.
func NewChannelReporter(ctx context.Context, bufferSize int) *ChannelReporter {
	reporterCtx, cancel := context.WithCancel(ctx)

	return &ChannelReporter{
		ch:     make(chan Event, bufferSize),
		ctx:    reporterCtx,
		cancel: cancel,
	}
}

// Report implements Reporter.Report.
// Events reported after Close, or after the parent context is done, are discarded.
func (cr *ChannelReporter) Report(event Event) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if cr.closed {
		return
	}

	select {
	case cr.ch <- event:
	case <-cr.ctx.Done():
	}
}

// Close implements Reporter.Close.
// Events already queued are still delivered to listeners before Close returns.
func (cr *ChannelReporter) Close() {
	cr.once.Do(func() {
		closed := make(chan struct{})

		go func() {
			defer close(closed)

			cr.mu.Lock()
			cr.closed = true
			close(cr.ch)
			cr.mu.Unlock()
		}()

		// Listeners drain the channel, which lets blocked senders release the lock.
		cr.wg.Wait()
		// Without listeners nothing drains, so senders are released by cancellation.
		cr.cancel()
		<-closed
	})
}

// Listen starts a goroutine forwarding events to listener until the reporter is closed.
// Call it before the first Report.
func (cr *ChannelReporter) Listen(listener Listener) {
	cr.wg.Add(1)

	go func() {
		defer cr.wg.Done()

		for event := range cr.ch {
			listener.OnEvent(event)
		}
	}()
}

// Events returns a read-only channel of progress events, closed by Close.
// Use it instead of Listen to handle events manually.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}

// Context returns the reporter's context, cancelled once the reporter is closed.
func (cr *ChannelReporter) Context() context.Context {
	return cr.ctx
}
