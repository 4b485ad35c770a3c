// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/cmdrunner/internal/command"
)

// ErrNoCommands is returned when there is nothing to launch.
var ErrNoCommands = errors.New("no commands to run")

// Group is a set of independently started queues.
type Group struct {
	queues []*Queue
}

// NewGroup wraps already created queues.
func NewGroup(queues ...*Queue) *Group {
	return &Group{queues: slices.Clone(queues)}
}

// RunSequential starts one queue over all cmds.
func RunSequential(ctx context.Context, cmds []*command.Command, opts ...Option) (*Group, error) {
	if len(cmds) == 0 {
		return nil, ErrNoCommands
	}

	q := New(opts...)
	if err := q.SetCommands(cmds); err != nil {
		return nil, err
	}

	if err := q.Start(ctx); err != nil {
		return nil, err
	}

	return NewGroup(q), nil
}

// RunParallel starts one single-command queue per command, all at once.
// Each queue is labelled after its command, so any WithLabel option is overridden.
func RunParallel(ctx context.Context, cmds []*command.Command, opts ...Option) (*Group, error) {
	if len(cmds) == 0 {
		return nil, ErrNoCommands
	}

	queues := make([]*Queue, 0, len(cmds))

	for i, c := range cmds {
		q := New(append(slices.Clone(opts), WithLabel(parallelLabel(i, c)))...)
		if err := q.SetCommands([]*command.Command{c}); err != nil {
			return nil, err
		}

		queues = append(queues, q)
	}

	g := NewGroup(queues...)

	var result error

	for _, q := range queues {
		if err := q.Start(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("start %s: %w", q.Label(), err))
		}
	}

	return g, result //nolint:wrapcheck
}

func parallelLabel(i int, c *command.Command) string {
	if comment := c.Comment(); comment != "" {
		return fmt.Sprintf("%d:%s", i+1, comment)
	}

	return fmt.Sprintf("%d:%s", i+1, c.String())
}

// Queues returns the queues of the group.
func (g *Group) Queues() []*Queue {
	return slices.Clone(g.queues)
}

// StopAll asks every queue to stop once its current command finishes.
func (g *Group) StopAll() {
	for _, q := range g.queues {
		q.StopWhenCurrentCommandFinishes()
	}
}

// KillAll kills every queue, collecting the kills that could not be confirmed.
func (g *Group) KillAll(ctx context.Context) error {
	var result error

	for _, q := range g.queues {
		if err := q.Kill(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result //nolint:wrapcheck
}

// Wait blocks until every queue has stopped or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	for _, q := range g.queues {
		if err := q.Wait(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Status returns the most significant status across all queues.
func (g *Group) Status() command.Status {
	statuses := make([]command.Status, 0, len(g.queues))
	for _, q := range g.queues {
		statuses = append(statuses, q.Status())
	}

	return command.MostSignificant(statuses...)
}

// Active reports whether any queue is still running or stopping.
func (g *Group) Active() bool {
	return slices.ContainsFunc(g.queues, func(q *Queue) bool {
		return q.State() != StateStopped
	})
}
