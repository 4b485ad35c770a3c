// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputBuffer_AppendAndLines(t *testing.T) {
	b := NewOutputBuffer(3)

	assert.Equal(t, 3, b.Cap())
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Lines())

	b.Append("one")
	b.Append("two")

	assert.Equal(t, []string{"one", "two"}, b.Lines())
	assert.Equal(t, 2, b.Len())
}

func TestOutputBuffer_EvictsOldest(t *testing.T) {
	b := NewOutputBuffer(DefaultOutputCapacity)

	for i := range DefaultOutputCapacity + 1 {
		b.Append(fmt.Sprintf("line %d", i))
	}

	lines := b.Lines()

	require.Len(t, lines, DefaultOutputCapacity)
	assert.Equal(t, "line 1", lines[0], "the first line is evicted")
	assert.Equal(t, fmt.Sprintf("line %d", DefaultOutputCapacity), lines[len(lines)-1], "the newest line is kept")
	assert.Equal(t, uint64(DefaultOutputCapacity+1), b.Total())
}

func TestOutputBuffer_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultOutputCapacity, NewOutputBuffer(0).Cap())
	assert.Equal(t, DefaultOutputCapacity, NewOutputBuffer(-5).Cap())
}

func TestOutputBuffer_LinesSince(t *testing.T) {
	b := NewOutputBuffer(3)

	for _, l := range []string{"a", "b", "c", "d", "e"} {
		b.Append(l)
	}

	tests := []struct {
		name     string
		seq      uint64
		expected []string
		next     uint64
	}{
		{name: "evicted lines are skipped", seq: 0, expected: []string{"c", "d", "e"}, next: 5},
		{name: "from the middle", seq: 3, expected: []string{"d", "e"}, next: 5},
		{name: "up to date", seq: 5, expected: nil, next: 5},
		{name: "ahead", seq: 9, expected: nil, next: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, next := b.LinesSince(tt.seq)
			assert.Equal(t, tt.expected, lines)
			assert.Equal(t, tt.next, next)
		})
	}
}

func TestOutputBuffer_ChangedAndClose(t *testing.T) {
	b := NewOutputBuffer(2)

	changed := b.Changed()

	select {
	case <-changed:
		t.Fatal("changed before any append")
	default:
	}

	b.Append("x")
	<-changed

	b.Close()
	assert.True(t, b.Closed())
	<-b.Changed()

	b.Append("ignored")
	assert.Equal(t, []string{"x"}, b.Lines())

	b.Close()
}

func TestOutputBuffer_Follow(t *testing.T) {
	b := NewOutputBuffer(DefaultOutputCapacity)
	b.Append("held")

	var (
		mu  sync.Mutex
		got []string
	)

	done := make(chan error)

	go func() {
		done <- b.Follow(context.Background(), func(line string) {
			mu.Lock()
			defer mu.Unlock()

			got = append(got, line)
		})
	}()

	for i := range 100 {
		b.Append(fmt.Sprintf("%d", i))
	}

	b.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return after close")
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, got, 101)
	assert.Equal(t, "held", got[0])
	assert.Equal(t, "99", got[100])
}

func TestOutputBuffer_FollowCancelled(t *testing.T) {
	b := NewOutputBuffer(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Follow(ctx, func(string) {})
	require.ErrorIs(t, err, context.Canceled)
}
