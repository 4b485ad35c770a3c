// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/commandqueue"
	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
	"github.com/peterh/liner"
	"golang.org/x/term"
)

const inputPrompt = "> "

// ErrNotATerminal is returned when input forwarding is requested without a terminal.
var ErrNotATerminal = errors.New("standard input is not a terminal")

// prompter reads lines typed by the user. *liner.State satisfies it.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// forwardTerminalInput sends every line typed on the terminal to the running commands of group.
// The returned function restores the terminal.
func forwardTerminalInput(ctx context.Context, group *commandqueue.Group) (func(), error) {
	if !stdinIsTerminal() {
		return nil, ErrNotATerminal
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	// A pending Prompt cannot be interrupted; the goroutine ends with the process.
	go forwardLines(ctx, line, group)

	return func() {
		_ = line.Close()
	}, nil
}

// forwardLines reads lines from p until it fails or ctx is done, sending each to the running commands.
func forwardLines(ctx context.Context, p prompter, group *commandqueue.Group) {
	for ctx.Err() == nil {
		input, err := p.Prompt(inputPrompt)

		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			ctxlog.Debug(ctx, "input forwarding ended", "reason", err)
			return
		case err != nil:
			ctxlog.Warn(ctx, "failed to read input", "error", err)
			return
		}

		if input != "" {
			p.AppendHistory(input)
		}

		running := runningCommands(group)
		if len(running) == 0 {
			ctxlog.Debug(ctx, "no running command, dropping input")
			continue
		}

		for _, c := range running {
			c.SendInput(ctx, input)
		}
	}
}

// runningCommands returns the commands of group that are running now.
func runningCommands(group *commandqueue.Group) []*command.Command {
	var running []*command.Command

	for _, q := range group.Queues() {
		for _, c := range q.Commands() {
			if c.Status() == command.StatusRunning {
				running = append(running, c)
			}
		}
	}

	return running
}
