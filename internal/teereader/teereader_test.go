// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package teereader

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records lines handed to the callback.
type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = append(c.lines, line)
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.lines...)
}

func TestLineTeeReader_Lines(t *testing.T) {
	tests := []struct {
		name            string
		input           string
		expectedLines   []string
		expectedLast    string
		expectedPartial string
	}{
		{
			name:          "single line with newline",
			input:         "hello world\n",
			expectedLines: []string{"hello world"},
			expectedLast:  "hello world",
		},
		{
			name:            "single line without newline",
			input:           "hello world",
			expectedLines:   nil,
			expectedPartial: "hello world",
		},
		{
			name:  "empty string",
			input: "",
		},
		{
			name:          "just newline",
			input:         "\n",
			expectedLines: []string{""},
		},
		{
			name:          "crlf line endings",
			input:         "one\r\ntwo\r\n",
			expectedLines: []string{"one", "two"},
			expectedLast:  "two",
		},
		{
			name:            "multiple lines with trailing partial",
			input:           "a\nb\nc",
			expectedLines:   []string{"a", "b"},
			expectedLast:    "b",
			expectedPartial: "c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &collector{}
			tr := NewLineTeeReader(strings.NewReader(tt.input), c.add)

			data, err := io.ReadAll(tr)
			require.NoError(t, err)

			assert.Equal(t, tt.input, string(data))
			assert.Equal(t, tt.expectedLines, c.get())
			assert.Equal(t, tt.expectedLast, tr.GetLastLine(0))
			assert.Equal(t, tt.expectedPartial, tr.GetPartialLine())
		})
	}
}

func TestLineTeeReader_Flush(t *testing.T) {
	c := &collector{}
	tr := NewLineTeeReader(strings.NewReader("first\nsecond"), c.add)

	_, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, c.get())

	tr.Flush()
	assert.Equal(t, []string{"first", "second"}, c.get())
	assert.Equal(t, "second", tr.GetLastLine(0))
	assert.Empty(t, tr.GetPartialLine())
	assert.Equal(t, 2, tr.LineCount())

	// Nothing left, nothing emitted.
	tr.Flush()
	assert.Len(t, c.get(), 2)
}

func TestLineTeeReader_ChunkedReading(t *testing.T) {
	input := "first line\nsecond line\nthird line\nfourth line"
	c := &collector{}
	tr := NewLineTeeReader(strings.NewReader(input), c.add)

	buffer := make([]byte, 5)

	var result []byte

	for {
		n, err := tr.Read(buffer)
		if n > 0 {
			result = append(result, buffer[:n]...)
		}

		if err == io.EOF {
			break
		}

		require.NoError(t, err)
	}

	assert.Equal(t, input, string(result))
	assert.Equal(t, []string{"first line", "second line", "third line"}, c.get())
	assert.Equal(t, "fourth line", tr.GetPartialLine())
}

func TestLineTeeReader_ProgressiveReading(t *testing.T) {
	tr := NewLineTeeReader(strings.NewReader("line1\nline2\nline3\n"), nil)

	buffer := make([]byte, 7) // "line1\nl"
	n, err := tr.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "line1", tr.GetLastLine(0))
	assert.Equal(t, "l", tr.GetPartialLine())

	buffer = make([]byte, 6) // "ine2\nl"
	n, err = tr.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "line2", tr.GetLastLine(0))
	assert.Equal(t, "l", tr.GetPartialLine())
}

func TestLineTeeReader_LongLines(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	c := &collector{}
	tr := NewLineTeeReader(strings.NewReader(long+"\nshort\n"), c.add)

	_, err := io.ReadAll(tr)
	require.NoError(t, err)

	lines := c.get()
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], 1<<20)
	assert.Equal(t, "short", lines[1])
}

func TestLineTeeReader_ConcurrentAccess(t *testing.T) {
	input := strings.Repeat("line\n", 1000)
	tr := NewLineTeeReader(strings.NewReader(input), nil)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		_, err := io.ReadAll(tr)
		assert.NoError(t, err)
	}()

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				_ = tr.GetLastLine(0)
				_ = tr.GetPartialLine()
				_ = tr.LineCount()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, "line", tr.GetLastLine(0))
	assert.Equal(t, 1000, tr.LineCount())
}

func TestLineTeeReader_ErrorHandling(t *testing.T) {
	c := &collector{}
	tr := NewLineTeeReader(&errorReader{data: "some data\nmore"}, c.add)

	buffer := make([]byte, 100)
	n, err := tr.Read(buffer)

	assert.Equal(t, 14, n)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"some data"}, c.get())
	assert.Equal(t, "more", tr.GetPartialLine())
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		expected  string
	}{
		{name: "no limit", input: "hello world", maxLength: 0, expected: "hello world"},
		{name: "fits", input: "hello", maxLength: 5, expected: "hello"},
		{name: "truncated", input: "hello world", maxLength: 8, expected: "hello..."},
		{name: "tiny limit", input: "hello world", maxLength: 2, expected: "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLength))
		})
	}
}

// errorReader returns its data together with an error.
type errorReader struct {
	data string
	read bool
}

func (e *errorReader) Read(p []byte) (int, error) {
	if e.read {
		return 0, io.EOF
	}

	e.read = true
	n := copy(p, e.data)

	return n, assert.AnError
}
