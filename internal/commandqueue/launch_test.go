// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandqueue

import (
	"context"
	"testing"
	"time"

	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitGroup(t *testing.T, g *Group) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, g.Wait(ctx))
}

func TestRunSequential(t *testing.T) {
	skipOnWindows(t)

	cmds := []*command.Command{
		command.New("", "echo one", ""),
		command.New("", "false", ""),
		command.New("", "echo three", ""),
	}

	g, err := RunSequential(context.Background(), cmds, WithHaltOnError(func() bool { return true }))
	require.NoError(t, err)
	waitGroup(t, g)

	require.Len(t, g.Queues(), 1)
	assert.Equal(t, DefaultLabel, g.Queues()[0].Label())
	assert.Equal(t, command.StatusFail, g.Status())
	assert.Equal(t, command.StatusIdle, cmds[2].Status())
	assert.False(t, g.Active())
}

func TestRunParallel(t *testing.T) {
	skipOnWindows(t)

	cmds := []*command.Command{
		command.New("", "false", "lint"),
		command.New("", "echo two", ""),
		command.New("", "echo three", ""),
	}

	g, err := RunParallel(context.Background(), cmds, WithLabel("ignored"))
	require.NoError(t, err)
	waitGroup(t, g)

	queues := g.Queues()
	require.Len(t, queues, 3)
	assert.Equal(t, "1:lint", queues[0].Label())
	assert.Equal(t, "2:echo two", queues[1].Label())

	// A failure in one queue does not stop the others.
	assert.Equal(t, command.StatusFail, cmds[0].Status())
	assert.Equal(t, command.StatusOK, cmds[1].Status())
	assert.Equal(t, command.StatusOK, cmds[2].Status())
	assert.Equal(t, command.StatusFail, g.Status())
}

func TestRunNothing(t *testing.T) {
	_, err := RunSequential(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoCommands)

	_, err = RunParallel(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoCommands)
}

func TestGroup_KillAll(t *testing.T) {
	skipOnWindows(t)

	dir := slowScript(t)
	cmds := []*command.Command{
		command.New(dir, "./slow.sh", ""),
		command.New(dir, "./slow.sh", ""),
	}

	g, err := RunParallel(context.Background(), cmds)
	require.NoError(t, err)
	assert.True(t, g.Active())

	for i, q := range g.Queues() {
		waitForOutput(t, q, cmds[i], "ready")
	}

	require.NoError(t, g.KillAll(context.Background()))
	waitGroup(t, g)

	assert.False(t, g.Active())
	assert.Equal(t, command.StatusIdle, g.Status())
}

func TestGroup_StopAll(t *testing.T) {
	skipOnWindows(t)

	cmds := []*command.Command{
		command.New("", "sleep 1", ""),
		command.New("", "echo never", ""),
	}

	g, err := RunSequential(context.Background(), cmds)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return cmds[0].Status() == command.StatusRunning }, 5*time.Second, 5*time.Millisecond)
	g.StopAll()
	waitGroup(t, g)

	assert.Equal(t, command.StatusOK, cmds[0].Status())
	assert.Equal(t, command.StatusIdle, cmds[1].Status())
}
