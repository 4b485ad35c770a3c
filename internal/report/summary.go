// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"fmt"
	"io"

	"github.com/matt-FFFFFF/cmdrunner/internal/color"
	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/commandqueue"
)

const outputIndent = "     "

// Options controls what is included in a summary.
type Options struct {
	IncludeOutput      bool // Whether to include the buffered output of commands
	ShowSuccessDetails bool // Whether to include output for commands that succeeded
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		IncludeOutput:      false,
		ShowSuccessDetails: false,
	}
}

// Glyph returns the coloured marker for a status.
func Glyph(s command.Status) string {
	switch s {
	case command.StatusOK:
		return color.Colorize("✓", color.FgGreen)
	case command.StatusFail:
		return color.Colorize("✗", color.FgRed)
	case command.StatusRunning:
		return color.Colorize("⚡", color.FgCyan)
	case command.StatusIdle:
		return color.Colorize("~", color.FgYellow)
	default:
		return color.Colorize("?", color.FgWhite)
	}
}

func statusCodes(s command.Status) []color.Code {
	switch s {
	case command.StatusOK:
		return []color.Code{color.Bold, color.FgGreen}
	case command.StatusFail:
		return []color.Code{color.Bold, color.FgRed}
	case command.StatusRunning:
		return []color.Code{color.Bold, color.FgCyan}
	default:
		return []color.Code{color.Bold, color.FgYellow}
	}
}

// WriteSummary writes one block per queue: the queue status, then every command with its status.
func WriteSummary(w io.Writer, queues []*commandqueue.Queue, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}

	for _, q := range queues {
		if err := writeQueue(w, q, opts); err != nil {
			return err
		}
	}

	return nil
}

func writeQueue(w io.Writer, q *commandqueue.Queue, opts *Options) error {
	status := q.Status()

	label := q.Label()
	if label == "" {
		label = "[unnamed]"
	}

	if _, err := fmt.Fprintf(w, "%s %s\n", Glyph(status), color.Colorize(label, statusCodes(status)...)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	for _, c := range q.Commands() {
		if err := writeCommand(w, q, c, opts); err != nil {
			return err
		}
	}

	return nil
}

func writeCommand(w io.Writer, q *commandqueue.Queue, c *command.Command, opts *Options) error {
	status := c.Status()

	line := fmt.Sprintf("  %s %s", Glyph(status), c.String())

	if code := c.ExitCode(); code > 0 {
		line += fmt.Sprintf(" (exit code: %d)", code)
	}

	if status == command.StatusIdle {
		line += color.Colorize(" (not run)", color.Faint)
	}

	if comment := c.Comment(); comment != "" {
		line += color.Colorize(" # "+comment, color.Faint)
	}

	if _, err := fmt.Fprintln(w, line); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	showDetails := opts.IncludeOutput && (status == command.StatusFail || opts.ShowSuccessDetails)
	if !showDetails {
		return nil
	}

	buf, err := q.OutputForCommand(c)
	if err != nil || buf.Len() == 0 {
		return nil //nolint:nilerr
	}

	if _, err := fmt.Fprintf(w, "    %s\n", color.Colorize("➜ Output:", color.FgHiBlack)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	for _, l := range buf.Lines() {
		if _, err := fmt.Fprintf(w, "%s%s\n", outputIndent, l); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	return nil
}
