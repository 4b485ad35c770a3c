// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/commandqueue"
	"github.com/matt-FFFFFF/cmdrunner/internal/config"
	"github.com/matt-FFFFFF/cmdrunner/internal/history"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

const treeYAML = `
name: sample
commands:
  - command: echo one
    comment: quick
  - name: build
    comment: ci
    commands:
      - command: "false"
      - command: echo two
  - command: echo three
    comment: quick
`

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping process test on windows")
	}
}

func writeTree(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// runCmd runs the subcommand with args, returning its plain output and exit code.
func runCmd(t *testing.T, args ...string) (string, int) {
	t.Helper()

	var out bytes.Buffer

	cmd := NewCommand()
	cmd.Writer = &out
	cmd.ErrWriter = io.Discard
	cmd.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	err := cmd.Run(ctx, append([]string{"run"}, args...))

	code := 0

	if err != nil {
		var ec cli.ExitCoder
		require.ErrorAs(t, err, &ec, "unexpected error: %v", err)
		code = ec.ExitCode()
	}

	return ansi.ReplaceAllString(out.String(), ""), code
}

func TestRun_HaltsOnError(t *testing.T) {
	skipOnWindows(t)

	out, code := runCmd(t, "-f", writeTree(t, treeYAML))

	assert.Equal(t, 1, code)
	assert.Contains(t, out, "--- executing echo one ----\none\n")
	assert.Contains(t, out, "--- false failed with exit code 1 ----")
	assert.NotContains(t, out, "--- executing echo two")
	assert.Contains(t, out, "✗ sample\n")
	assert.Contains(t, out, "~ echo three (not run)")
}

func TestRun_NoHaltOnError(t *testing.T) {
	skipOnWindows(t)

	out, code := runCmd(t, "-f", writeTree(t, treeYAML), "--halt-on-error=false")

	assert.Equal(t, 1, code, "a failure still fails the run")
	assert.Contains(t, out, "--- executing echo two ----\ntwo\n")
	assert.Contains(t, out, "--- executing echo three ----\nthree\n")
}

func TestRun_HaltOnErrorFromSettings(t *testing.T) {
	skipOnWindows(t)

	tree := "settings:\n  halt_on_error: false\n" + treeYAML

	out, _ := runCmd(t, "-f", writeTree(t, tree))
	assert.Contains(t, out, "--- executing echo three ----")

	out, _ = runCmd(t, "-f", writeTree(t, tree), "--halt-on-error")
	assert.NotContains(t, out, "--- executing echo three ----", "the flag overrides the settings")
}

func TestRun_Selection(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name     string
		args     []string
		code     int
		ran      []string
		notRan   []string
		contains string
	}{
		{
			name:   "comment",
			args:   []string{"--comment", "quick"},
			ran:    []string{"echo one", "echo three"},
			notRan: []string{"false"},
		},
		{
			name:   "select path",
			args:   []string{"--select", "#3"},
			ran:    []string{"echo three"},
			notRan: []string{"echo one"},
		},
		{
			name:   "select many",
			args:   []string{"-s", "build/#2", "-s", "#1"},
			ran:    []string{"echo two", "echo one"},
			notRan: []string{"false"},
		},
		{
			name: "all",
			args: []string{"--all"},
			code: 1,
			ran:  []string{"echo one", "false"},
		},
		{name: "unknown path", args: []string{"--select", "nope"}, code: 1},
		{name: "nothing selected", args: []string{"--comment", "nope"}, code: 1},
		{name: "conflicting", args: []string{"--comment", "quick", "--all"}, code: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := runCmd(t, append([]string{"-f", writeTree(t, treeYAML)}, tt.args...)...)

			assert.Equal(t, tt.code, code)

			for _, c := range tt.ran {
				assert.Contains(t, out, "--- executing "+c+" ----")
			}

			for _, c := range tt.notRan {
				assert.NotContains(t, out, "--- executing "+c+" ----")
			}
		})
	}
}

func TestRun_Parallel(t *testing.T) {
	skipOnWindows(t)

	out, code := runCmd(t, "-f", writeTree(t, treeYAML), "--comment", "quick", "--parallel")

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "[1:quick] one\n")
	assert.Contains(t, out, "[2:quick] three\n")
	assert.Contains(t, out, "✓ 1:quick\n")
	assert.Contains(t, out, "✓ 2:quick\n")
}

func TestRun_Output(t *testing.T) {
	skipOnWindows(t)

	tree := "commands:\n  - command: ls /definitely/not/here\n"

	out, code := runCmd(t, "-f", writeTree(t, tree), "--output")

	assert.Equal(t, 1, code)
	assert.Contains(t, out, "➜ Output:")
	assert.Contains(t, out, "✗ queue\n", "unnamed trees use the default label")
}

func TestRun_Record(t *testing.T) {
	skipOnWindows(t)

	db := filepath.Join(t.TempDir(), "history.db")
	t.Setenv(config.HistoryDBEnvVar, db)

	out, code := runCmd(t, "-f", writeTree(t, treeYAML), "--comment", "quick", "--record")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "recorded run ")

	store, err := history.Open(context.Background(), db)
	require.NoError(t, err)

	defer store.Close() //nolint:errcheck

	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "sample", runs[0].Queue)
	assert.Equal(t, "ok", runs[0].Status)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no file", args: nil},
		{name: "missing file", args: []string{"-f", "/definitely/not/here.yaml"}},
		{name: "interactive with tui", args: []string{"-f", "x.yaml", "--tui", "--interactive"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, code := runCmd(t, tt.args...)
			assert.Equal(t, 1, code)
		})
	}
}

func TestRun_InteractiveWithoutTerminal(t *testing.T) {
	skipOnWindows(t)

	stubs := gostub.Stub(&stdinIsTerminal, func() bool { return false })
	defer stubs.Reset()

	out, code := runCmd(t, "-f", writeTree(t, "commands:\n  - command: echo hi\n"), "--interactive")

	assert.Equal(t, 0, code, "the run goes ahead without forwarding")
	assert.Contains(t, out, "hi\n")
}

func TestExitFor(t *testing.T) {
	require.NoError(t, exitFor(command.StatusOK))

	for _, s := range []command.Status{command.StatusFail, command.StatusIdle} {
		var ec cli.ExitCoder
		require.ErrorAs(t, exitFor(s), &ec)
		assert.Equal(t, 1, ec.ExitCode())
	}
}

type fakePrompter struct {
	mu      sync.Mutex
	lines   []string
	history []string
	ready   func() bool
}

// Prompt hands out the next line once ready reports true, then io.EOF.
func (f *fakePrompter) Prompt(_ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.lines) == 0 {
		return "", io.EOF
	}

	deadline := time.Now().Add(5 * time.Second)
	for !f.ready() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	line := f.lines[0]
	f.lines = f.lines[1:]

	return line, nil
}

func (f *fakePrompter) AppendHistory(item string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.history = append(f.history, item)
}

func TestForwardLines(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	script := filepath.Join(t.TempDir(), "reader.sh")
	require.NoError(t, os.WriteFile(script, []byte("read x\necho got $x\n"), 0o600))

	c := command.New("", "sh "+script, "")

	group, err := commandqueue.RunSequential(ctx, []*command.Command{c})
	require.NoError(t, err)

	p := &fakePrompter{
		lines: []string{"hello"},
		ready: func() bool { return len(runningCommands(group)) > 0 },
	}

	forwardLines(ctx, p, group)
	require.NoError(t, group.Wait(ctx))

	buf, err := group.Queues()[0].OutputForCommand(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"got hello"}, buf.Lines())
	assert.Equal(t, []string{"hello"}, p.history)
	assert.Equal(t, command.StatusOK, group.Status())
}

func TestForwardLines_Errors(t *testing.T) {
	group := commandqueue.NewGroup()

	p := &fakePrompter{ready: func() bool { return true }}
	forwardLines(context.Background(), p, group)
	assert.Empty(t, p.history, "EOF ends forwarding")

	p = &fakePrompter{lines: []string{"ignored"}, ready: func() bool { return true }}
	forwardLines(context.Background(), errPrompter{p}, group)
}

type errPrompter struct{ *fakePrompter }

func (errPrompter) Prompt(string) (string, error) {
	return "", errors.New("terminal gone")
}

func TestRunningCommands(t *testing.T) {
	assert.Empty(t, runningCommands(commandqueue.NewGroup(commandqueue.New())))
}
