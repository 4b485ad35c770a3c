// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/matt-FFFFFF/cmdrunner/internal/color"
	"github.com/matt-FFFFFF/cmdrunner/internal/progress"
)

var _ progress.Listener = (*LinePrinter)(nil)

// LinePrinter writes command output to w as it arrives, with a header line before each command.
// When prefixLabels is set every line starts with the queue label, so interleaved parallel output stays readable.
type LinePrinter struct {
	mu           sync.Mutex
	w            io.Writer
	prefixLabels bool
	err          error
}

// NewLinePrinter creates a LinePrinter writing to w.
func NewLinePrinter(w io.Writer, prefixLabels bool) *LinePrinter {
	return &LinePrinter{
		w:            w,
		prefixLabels: prefixLabels,
	}
}

// OnEvent implements progress.Listener.
func (p *LinePrinter) OnEvent(event progress.Event) {
	var line string

	cmd := eventCommand(event)

	switch event.Type {
	case progress.EventStarted:
		line = color.Colorize(fmt.Sprintf("--- executing %s ----", cmd), color.Bold)
	case progress.EventOutput:
		line = event.Data.OutputLine
	case progress.EventFailed:
		line = color.Colorize(
			fmt.Sprintf("--- %s failed with exit code %d ----", cmd, event.Data.ExitCode), color.Bold, color.FgRed)
	case progress.EventKilled:
		line = color.Colorize(fmt.Sprintf("--- %s was killed ----", cmd), color.Bold, color.FgYellow)
	case progress.EventQueueFinished:
		if !p.prefixLabels {
			return
		}

		line = color.Colorize("--- finished: "+event.Data.Status+" ----", color.Faint)
	default:
		return
	}

	p.write(event.Queue(), line)
}

func (p *LinePrinter) write(label, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return
	}

	if p.prefixLabels && label != "" {
		line = color.Colorize("["+label+"] ", color.FgCyan) + line
	}

	if _, err := fmt.Fprintln(p.w, line); err != nil {
		p.err = fmt.Errorf("failed to write output: %w", err)
	}
}

// Err returns the first write error; once set nothing more is written.
func (p *LinePrinter) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

func eventCommand(event progress.Event) string {
	if len(event.CommandPath) > 1 {
		return event.CommandPath[len(event.CommandPath)-1]
	}

	return event.Queue()
}
