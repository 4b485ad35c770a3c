// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/cmdrunner/internal/commandqueue"
	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
	"github.com/matt-FFFFFF/cmdrunner/internal/progress"
)

var _ progress.Reporter = (*TUIReporter)(nil)

// StartFunc starts the queues to display, reporting to reporter.
type StartFunc func(ctx context.Context, reporter progress.Reporter) (*commandqueue.Group, error)

// TUIReporter implements progress.Reporter and forwards events to the TUI.
type TUIReporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewTUIReporter creates a new TUI progress reporter.
func NewTUIReporter(program *tea.Program) *TUIReporter {
	return &TUIReporter{
		program: program,
	}
}

// Report implements progress.Reporter.Report.
// It blocks until the program accepts the event, or the program has exited.
func (tr *TUIReporter) Report(event progress.Event) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	if tr.closed || tr.program == nil {
		return
	}

	tr.program.Send(ProgressEventMsg{Event: event})
}

// Close implements progress.Reporter.Close.
func (tr *TUIReporter) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	tr.closed = true
}

// lockedBuffer collects log output written from any goroutine while the TUI owns the screen.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p) //nolint:wrapcheck
}

func (b *lockedBuffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.WriteTo(w) //nolint:wrapcheck
}

// Runner manages the TUI application and the queues it shows.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *TUIReporter
	logs     *lockedBuffer
}

// NewRunner creates a new TUI runner. opts are passed to the bubbletea program.
func NewRunner(ctx context.Context, opts ...tea.ProgramOption) *Runner {
	model := NewModel(ctx)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	return &Runner{
		model:    model,
		program:  program,
		reporter: NewTUIReporter(program),
		logs:     &lockedBuffer{},
	}
}

// Reporter returns the progress reporter for this runner.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Run shows the TUI while the queues started by start run.
// The TUI stays up after the queues finish until the user quits; quitting earlier kills the queues.
// Logs written while the TUI is up are copied to logOut afterwards.
func (r *Runner) Run(ctx context.Context, start StartFunc, logOut io.Writer) (*commandqueue.Group, error) {
	ctx = ctxlog.NewForTUI(ctx, r.logs)

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	group, startErr := start(ctx, r.reporter)
	if group == nil {
		r.reporter.Close()
		r.program.Quit()
		err := <-tuiDone
		r.flushLogs(logOut)

		return nil, errors.Join(startErr, err)
	}

	r.model.SetController(group)

	queuesDone := make(chan error, 1)

	go func() {
		err := group.Wait(ctx)
		r.program.Send(CompletedMsg{Status: group.Status()})
		queuesDone <- err
	}()

	var tuiErr, waitErr error

	select {
	case waitErr = <-queuesDone:
		tuiErr = <-tuiDone

	case tuiErr = <-tuiDone:
		// The user quit early; don't leave processes behind.
		if err := group.KillAll(ctx); err != nil {
			ctxlog.Error(ctx, "failed to kill queues", "error", err)
		}

		waitErr = <-queuesDone

	case <-ctx.Done():
		r.program.Quit()

		tuiErr = <-tuiDone
		waitErr = <-queuesDone
	}

	r.reporter.Close()
	r.flushLogs(logOut)

	if tuiErr != nil {
		tuiErr = fmt.Errorf("tui: %w", tuiErr)
	}

	return group, errors.Join(startErr, waitErr, tuiErr)
}

func (r *Runner) flushLogs(w io.Writer) {
	if w == nil {
		return
	}

	_, _ = r.logs.WriteTo(w)
}
