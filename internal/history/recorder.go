// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/commandqueue"
	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
)

var _ commandqueue.Listener = (*Recorder)(nil)

// Recorder saves every queue it listens to when the queue finishes.
type Recorder struct {
	ctx   context.Context //nolint:containedctx
	store *Store
	now   func() time.Time

	mu      sync.Mutex
	started map[*commandqueue.Queue]time.Time
	ids     []string
	err     error
}

// NewRecorder creates a recorder saving to store. ctx is used for the database writes.
func NewRecorder(ctx context.Context, store *Store) *Recorder {
	return &Recorder{
		ctx:     ctx,
		store:   store,
		now:     time.Now,
		started: make(map[*commandqueue.Queue]time.Time),
	}
}

// CommandQueueStarted implements commandqueue.Listener.
func (r *Recorder) CommandQueueStarted(q *commandqueue.Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.started[q]; !ok {
		r.started[q] = r.now()
	}
}

// CommandQueueIsProcessing implements commandqueue.Listener.
func (r *Recorder) CommandQueueIsProcessing(_ *command.Command) {}

// CommandQueueFinished implements commandqueue.Listener.
// Failures are logged and kept for Err; they never reach the queue.
func (r *Recorder) CommandQueueFinished(q *commandqueue.Queue) {
	finished := r.now()

	r.mu.Lock()
	started, ok := r.started[q]
	delete(r.started, q)
	r.mu.Unlock()

	if !ok {
		started = finished
	}

	run := &Run{
		ID:         uuid.NewString(),
		Queue:      q.Label(),
		Status:     q.Status().String(),
		StartedAt:  started,
		FinishedAt: finished,
	}

	for i, c := range q.Commands() {
		rc := RunCommand{
			Position:  i,
			Command:   c.NameAndArguments(),
			Directory: c.WorkingDirectory(),
			Comment:   c.Comment(),
			Status:    c.Status().String(),
			ExitCode:  c.ExitCode(),
		}

		if buf, err := q.OutputForCommand(c); err == nil {
			rc.Output = buf.Lines()
		}

		run.Commands = append(run.Commands, rc)
	}

	err := r.store.Save(r.ctx, run)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		ctxlog.Error(r.ctx, "failed to record run", "queue", run.Queue, "error", err)
		r.err = multierror.Append(r.err, err)

		return
	}

	ctxlog.Debug(r.ctx, "recorded run", "queue", run.Queue, "id", run.ID)
	r.ids = append(r.ids, run.ID)
}

// IDs returns the ids of the runs saved so far, in the order they finished.
func (r *Recorder) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.ids...)
}

// Err returns every save failure so far.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}
