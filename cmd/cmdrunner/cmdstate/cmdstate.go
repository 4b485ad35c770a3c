// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmdstate holds the queues started by the current CLI invocation.
// The signal handlers are installed in main before any subcommand runs, so the
// running group has to be shared through package state.
package cmdstate

import (
	"context"
	"sync"

	"github.com/matt-FFFFFF/cmdrunner/internal/commandqueue"
)

var (
	mu    sync.Mutex
	group *commandqueue.Group
)

// SetGroup records the group that signals act on. Pass nil once it has finished.
func SetGroup(g *commandqueue.Group) {
	mu.Lock()
	defer mu.Unlock()

	group = g
}

func current() *commandqueue.Group {
	mu.Lock()
	defer mu.Unlock()

	return group
}

// StopAll asks the running queues to stop after their current command.
// It reports false when nothing is running.
func StopAll() bool {
	g := current()
	if g == nil {
		return false
	}

	g.StopAll()

	return true
}

// KillAll kills the running queues. It reports false when nothing is running.
func KillAll(ctx context.Context) (bool, error) {
	g := current()
	if g == nil {
		return false, nil
	}

	return true, g.KillAll(ctx)
}
