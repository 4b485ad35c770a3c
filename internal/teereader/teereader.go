// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package teereader

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// LineTeeReader wraps an io.Reader and reports every line read through it.
// Read and Flush must be called from one goroutine; the getters are safe for concurrent use.
type LineTeeReader struct {
	reader   io.Reader
	onLine   func(line string)
	partial  bytes.Buffer // bytes after the last newline
	lastLine string
	lines    int
	mu       sync.RWMutex
}

// NewLineTeeReader creates a LineTeeReader. onLine may be nil.
func NewLineTeeReader(r io.Reader, onLine func(line string)) *LineTeeReader {
	return &LineTeeReader{
		reader: r,
		onLine: onLine,
	}
}

// Read implements io.Reader.
// Complete lines are passed to the callback, in order, before Read returns.
func (lt *LineTeeReader) Read(p []byte) (int, error) {
	n, err := lt.reader.Read(p)
	if n > 0 {
		lt.emit(lt.split(p[:n]))
	}

	return n, err //nolint:wrapcheck
}

// Flush reports any trailing data that was not terminated by a newline.
// Call it once the underlying reader is exhausted.
func (lt *LineTeeReader) Flush() {
	lt.mu.Lock()
	if lt.partial.Len() == 0 {
		lt.mu.Unlock()
		return
	}

	line := trimLine(lt.partial.String())
	lt.partial.Reset()
	lt.record(line)
	lt.mu.Unlock()

	lt.emit([]string{line})
}

// split appends data to the partial line and returns the lines it completes.
func (lt *LineTeeReader) split(data []byte) []string {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var complete []string

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lt.partial.Write(data)
			return complete
		}

		lt.partial.Write(data[:i])
		line := trimLine(lt.partial.String())
		lt.partial.Reset()
		lt.record(line)
		complete = append(complete, line)
		data = data[i+1:]
	}
}

// record must be called with the write lock held.
func (lt *LineTeeReader) record(line string) {
	lt.lastLine = line
	lt.lines++
}

func (lt *LineTeeReader) emit(lines []string) {
	if lt.onLine == nil {
		return
	}

	for _, line := range lines {
		lt.onLine(line)
	}
}

// GetLastLine returns the last complete line that was read.
// If maxLength > 0 the line is truncated to that length, ending in "...".
func (lt *LineTeeReader) GetLastLine(maxLength int) string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return Truncate(lt.lastLine, maxLength)
}

// GetPartialLine returns the data read after the last newline.
func (lt *LineTeeReader) GetPartialLine() string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return lt.partial.String()
}

// LineCount returns how many lines have been reported.
func (lt *LineTeeReader) LineCount() int {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return lt.lines
}

const ellipsis = "..."

// Truncate shortens s to maxLength, ending in "...". A maxLength <= 0 means no limit.
func Truncate(s string, maxLength int) string {
	if maxLength <= 0 || len(s) <= maxLength {
		return s
	}

	if maxLength <= len(ellipsis) {
		return s[:maxLength]
	}

	return s[:maxLength-len(ellipsis)] + ellipsis
}

func trimLine(s string) string {
	return strings.TrimSuffix(s, "\r")
}
