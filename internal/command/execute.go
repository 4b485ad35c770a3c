// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
	"github.com/matt-FFFFFF/cmdrunner/internal/teereader"
)

var (
	// ErrEmptyCommand is returned when the command line contains no executable.
	ErrEmptyCommand = errors.New("empty command line")
	// ErrNotFoundInPath is returned when the executable cannot be found in PATH.
	ErrNotFoundInPath = errors.New("executable not found in PATH")
	// ErrCouldNotStartProcess is returned when the process could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrCouldNotKillProcess is returned when a killed process did not exit in time.
	ErrCouldNotKillProcess = errors.New("could not confirm process was killed")
	// ErrFailedToReadOutput is returned when the output pipe fails mid-stream.
	ErrFailedToReadOutput = errors.New("failed to read output")
	// ErrFailedToCreatePipe is returned when the operating system pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrFailedToWait is returned when waiting for the process fails.
	ErrFailedToWait = errors.New("failed to wait for process")
	// ErrFailedToWriteInput is returned when writing to the process's standard input fails.
	ErrFailedToWriteInput = errors.New("failed to write input")
)

// killConfirmTimeout bounds how long Kill waits for the process to be reaped.
var killConfirmTimeout = 10 * time.Second

// Execute runs the command and blocks until the process has exited or failed to start.
// It may only be called once per Command; later calls are ignored.
//
// Failures never escape as errors. They set the status to StatusFail and are
// reported as one extra output line of the form "<type>: <message>".
func (c *Command) Execute(ctx context.Context) {
	logger := ctxlog.Logger(ctx).
		With("runnableType", "Command").
		With("command", c.NameAndArguments())

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		logger.Warn("command has already been executed, ignoring")

		return
	}

	c.started = true
	c.finished = make(chan struct{})

	if c.killed {
		c.mu.Unlock()
		logger.Debug("command was killed before it started")
		c.notifyExecuted()

		return
	}

	c.status = StatusRunning
	c.mu.Unlock()

	state, err := c.run(ctx, logger)

	c.mu.RLock()
	killed := killedProcess(c.killed, state)
	inputErr := c.inputErr
	c.mu.RUnlock()

	if err == nil && inputErr != nil {
		err = fmt.Errorf("%w: %w", ErrFailedToWriteInput, inputErr)
	}

	if err != nil && !killed {
		logger.Debug("command failed", "error", err)
		c.emitOutput(failureLine(err))
	}

	c.mu.Lock()
	switch {
	case killed:
		c.status = StatusIdle
	case err != nil:
		c.status = StatusFail
	default:
		c.status = StatusFromProcessState(state)
	}

	if exited, ok := state.(Exited); ok && !killed {
		c.exitCode = exited.Code
	}

	status := c.status
	c.mu.Unlock()

	logger.Debug("command finished", "status", status.String())

	c.notifyExecuted()
}

// run starts the process, pumps its output and waits for it.
// Pipe handles are always released before it returns.
func (c *Command) run(ctx context.Context, logger *slog.Logger) (ProcessState, error) {
	args := c.Args()
	if len(args) == 0 {
		return NotStarted{}, fmt.Errorf("%w: %w", ErrCouldNotStartProcess, ErrEmptyCommand)
	}

	dir := c.WorkingDirectory()

	path, err := resolveExecutable(args[0], dir)
	if err != nil {
		return NotStarted{}, fmt.Errorf("%w: %w", ErrCouldNotStartProcess, err)
	}

	rOut, wOut, err := os.Pipe()
	if err != nil {
		return NotStarted{}, fmt.Errorf("%w: %w", ErrFailedToCreatePipe, err)
	}

	defer rOut.Close() //nolint:errcheck

	rIn, wIn, err := os.Pipe()
	if err != nil {
		_ = wOut.Close()
		return NotStarted{}, fmt.Errorf("%w: %w", ErrFailedToCreatePipe, err)
	}

	logger.Debug("starting process", "path", path, "cwd", dir, "args", args[1:])

	// Holding the lock across the start means Kill never sees a half started process.
	c.mu.Lock()
	if c.killed {
		c.mu.Unlock()
		_ = rIn.Close()
		_ = wIn.Close()
		_ = wOut.Close()

		return NotStarted{}, ErrCouldNotStartProcess
	}

	c.spawned = true

	ps, err := os.StartProcess(path, args, &os.ProcAttr{
		Dir:   dir,
		Env:   os.Environ(),
		Files: []*os.File{rIn, wOut, wOut},
	})

	// The child has its own copies now.
	_ = rIn.Close()
	_ = wOut.Close()

	if err != nil {
		c.mu.Unlock()
		_ = wIn.Close()

		return NotStarted{}, fmt.Errorf("%w: %w", ErrCouldNotStartProcess, err)
	}

	c.ps = ps
	c.stdin = wIn
	c.mu.Unlock()

	logger.Debug("process started", "pid", ps.Pid)

	defer func() {
		c.mu.Lock()
		c.ps = nil
		c.stdin = nil
		c.mu.Unlock()

		_ = wIn.Close()
	}()

	tee := teereader.NewLineTeeReader(rOut, c.emitOutput)

	_, readErr := io.Copy(io.Discard, tee)
	tee.Flush()

	if readErr != nil {
		// The pipe is gone, so nothing will drain the child. Reap it rather than leak it.
		killPs(ctx, ps)
	}

	psState, waitErr := ps.Wait()

	// Reaped: from here on Kill has nothing to signal.
	c.mu.Lock()
	c.ps = nil
	c.stdin = nil
	c.mu.Unlock()

	switch {
	case readErr != nil:
		return Running{}, fmt.Errorf("%w: %w", ErrFailedToReadOutput, readErr)
	case waitErr != nil:
		return Running{}, fmt.Errorf("%w: %w", ErrFailedToWait, waitErr)
	}

	logger.Debug("process exited", "pid", ps.Pid, "exitCode", psState.ExitCode(), "lines", tee.LineCount())

	return Exited{Code: psState.ExitCode()}, nil
}

// SendInput writes text and a line terminator to the process's standard input.
// It does nothing, apart from logging, if the command is not running.
// A failed write while the process is alive makes the execution end with StatusFail.
func (c *Command) SendInput(ctx context.Context, text string) {
	c.mu.RLock()
	stdin := c.stdin
	c.mu.RUnlock()

	if stdin == nil {
		ctxlog.Debug(ctx, "command has no input sink, dropping input", "command", c.NameAndArguments())
		return
	}

	_, err := io.WriteString(stdin, text+"\n")
	if err == nil {
		return
	}

	ctxlog.Warn(ctx, "failed to write command input", "command", c.NameAndArguments(), "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ps != nil && c.inputErr == nil {
		c.inputErr = err
	}
}

// Kill forcibly terminates the running process and waits for the execution to end.
// Once the exit is confirmed the status is StatusIdle and listeners have been notified.
// It is safe to call in any state. Called before Execute it makes Execute end at once,
// idle, without starting a process. After Execute returns it does nothing.
//
// A process that exits on its own before the signal is delivered keeps its own status.
//
// Termination is best effort. If the process is not reaped in time ErrCouldNotKillProcess
// is returned and the status stays StatusRunning.
//
// Kill must not be called from a listener callback of the same command.
func (c *Command) Kill(ctx context.Context) error {
	c.mu.Lock()
	finished := c.finished

	if finished == nil {
		c.killed = true
		c.mu.Unlock()

		return nil
	}

	select {
	case <-finished:
		c.mu.Unlock()
		return nil
	default:
	}

	switch {
	case c.ps != nil:
		if killPs(ctx, c.ps) {
			c.killed = true
		}
	case !c.spawned:
		// run checks this before it starts the process.
		c.killed = true
	}
	c.mu.Unlock()

	select {
	case <-finished:
		return nil
	case <-time.After(killConfirmTimeout):
		ctxlog.Warn(ctx, "process did not exit after kill", "command", c.NameAndArguments(), "timeout", killConfirmTimeout)
		return ErrCouldNotKillProcess
	case <-ctx.Done():
		return errors.Join(ErrCouldNotKillProcess, ctx.Err())
	}
}

// killPs signals ps and reports whether the signal was delivered.
func killPs(ctx context.Context, ps *os.Process) bool {
	if err := ps.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			ctxlog.Debug(ctx, "process already done", "pid", ps.Pid)
			return false
		}

		ctxlog.Error(ctx, "process kill error", "pid", ps.Pid, "error", err)

		return false
	}

	ctxlog.Info(ctx, "process killed", "pid", ps.Pid)

	return true
}

// killedProcess reports whether an execution ended because of Kill rather than on its own.
// A signalled process has no exit code; on Windows a terminated process still gets one.
func killedProcess(killRequested bool, state ProcessState) bool {
	if !killRequested {
		return false
	}

	exited, ok := state.(Exited)
	if !ok {
		return true
	}

	return exited.Code < 0 || runtime.GOOS == "windows"
}

// failureLine renders err as "<type of root cause>: <message>".
func failureLine(err error) string {
	cause := err

	for {
		switch e := cause.(type) { //nolint:errorlint
		case interface{ Unwrap() []error }:
			errs := e.Unwrap()
			if len(errs) == 0 {
				return formatFailure(cause, err)
			}

			cause = errs[len(errs)-1]
		default:
			return formatFailure(cause, err)
		}
	}
}

func formatFailure(cause, err error) string {
	name := strings.TrimPrefix(fmt.Sprintf("%T", cause), "*")
	if name == "errors.errorString" {
		name = "error"
	}

	return fmt.Sprintf("%s: %s", name, err.Error())
}

// resolveExecutable finds the file to run.
// Names containing a path separator are taken relative to dir, others are looked up in PATH.
func resolveExecutable(name, dir string) (string, error) {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		if !filepath.IsAbs(name) && dir != "" {
			return filepath.Join(dir, name), nil
		}

		return name, nil
	}

	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		if p == "" {
			p = "."
		}

		for _, candidate := range executableCandidates(filepath.Join(p, name)) {
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}

			if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
				continue
			}

			return candidate, nil
		}
	}

	return "", &exec.Error{Name: name, Err: ErrNotFoundInPath}
}

func executableCandidates(path string) []string {
	if runtime.GOOS != "windows" || filepath.Ext(path) != "" {
		return []string{path}
	}

	return []string{path, path + ".exe", path + ".bat", path + ".cmd"}
}
