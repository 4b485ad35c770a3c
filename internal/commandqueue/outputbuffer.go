// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandqueue

import (
	"context"
	"sync"
)

// DefaultOutputCapacity is the number of lines kept per command.
const DefaultOutputCapacity = 1024

// OutputBuffer is a bounded FIFO of output lines.
// When full, appending evicts the oldest line.
// It is safe for one writer and any number of readers.
type OutputBuffer struct {
	mu      sync.RWMutex
	lines   []string
	start   int    // index of the oldest line in lines
	count   int    // lines currently held
	total   uint64 // lines ever appended
	changed chan struct{}
	closed  bool
}

// NewOutputBuffer creates an empty buffer holding at most capacity lines.
// A capacity below one uses DefaultOutputCapacity.
func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity < 1 {
		capacity = DefaultOutputCapacity
	}

	return &OutputBuffer{
		lines:   make([]string, capacity),
		changed: make(chan struct{}),
	}
}

// Append adds a line, evicting the oldest one if the buffer is full.
// Lines appended after Close are ignored.
func (b *OutputBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	capacity := len(b.lines)

	if b.count == capacity {
		b.lines[b.start] = line
		b.start = (b.start + 1) % capacity
	} else {
		b.lines[(b.start+b.count)%capacity] = line
		b.count++
	}

	b.total++
	b.broadcastLocked()
}

// Close marks the buffer complete. Followers return once they have read every line.
func (b *OutputBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	b.broadcastLocked()
}

func (b *OutputBuffer) broadcastLocked() {
	close(b.changed)

	if !b.closed {
		b.changed = make(chan struct{})
	}
}

// Closed reports whether Close has been called.
func (b *OutputBuffer) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.closed
}

// Len returns the number of lines held.
func (b *OutputBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// Cap returns the maximum number of lines held.
func (b *OutputBuffer) Cap() int {
	return len(b.lines)
}

// Total returns the number of lines ever appended, including evicted ones.
func (b *OutputBuffer) Total() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.total
}

// Lines returns a copy of the held lines, oldest first.
func (b *OutputBuffer) Lines() []string {
	lines, _ := b.LinesSince(0)
	return lines
}

// LinesSince returns the held lines whose sequence number is at least seq, oldest first,
// and the sequence number to pass next time. The first line ever appended has sequence 0.
// Lines evicted before they were read are skipped.
func (b *OutputBuffer) LinesSince(seq uint64) ([]string, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	oldest := b.total - uint64(b.count)
	if seq < oldest {
		seq = oldest
	}

	if seq >= b.total {
		return nil, b.total
	}

	n := int(b.total - seq)
	skip := b.count - n
	capacity := len(b.lines)
	out := make([]string, n)

	for i := range n {
		out[i] = b.lines[(b.start+skip+i)%capacity]
	}

	return out, b.total
}

// Changed returns a channel that is closed at the next Append or at Close.
// A closed buffer returns an already closed channel.
func (b *OutputBuffer) Changed() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.changed
}

// Follow calls fn for every line, starting with the held ones, blocking for new lines
// until the buffer is closed or ctx is done.
func (b *OutputBuffer) Follow(ctx context.Context, fn func(line string)) error {
	var seq uint64

	for {
		changed := b.Changed()
		closed := b.Closed()

		var lines []string

		lines, seq = b.LinesSince(seq)
		for _, line := range lines {
			fn(line)
		}

		if closed {
			// Close happened before the read above, so nothing is left.
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck
		}
	}
}
