// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
)

var (
	// ErrNotStopped is returned when the command list is replaced while the queue is active.
	ErrNotStopped = errors.New("queue is not stopped")
	// ErrAlreadyRun is returned when a queue is started again without new commands.
	ErrAlreadyRun = errors.New("queue commands have already been run, set new commands first")
	// ErrCommandNotInQueue is returned when asking for the output of a command the queue does not hold.
	ErrCommandNotInQueue = errors.New("invalid argument: command is not in this queue")
)

// DefaultLabel is the label of a queue created without WithLabel.
const DefaultLabel = "queue"

// State is the lifecycle state of a Queue.
type State int

const (
	// StateStopped means no command is being run and none will be dispatched.
	StateStopped State = iota
	// StateRunning means commands are being dispatched one after another.
	StateRunning
	// StateStopping means the current command runs to completion and then the queue stops.
	StateStopping
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Listener is notified about the lifecycle of a queue.
// Callbacks are never invoked while the queue holds its lock.
type Listener interface {
	// CommandQueueStarted is called on every Start.
	CommandQueueStarted(q *Queue)
	// CommandQueueFinished is called once each time the queue stops.
	CommandQueueFinished(q *Queue)
	// CommandQueueIsProcessing is called as each command is dispatched, before it starts.
	CommandQueueIsProcessing(c *command.Command)
}

var _ command.Listener = (*Queue)(nil)

// Queue runs a fixed list of commands one at a time, in order.
//
// Advancement happens in the CommandExecuted callback, on the goroutine of the command
// that just finished. A failed command stops the queue when the halt-on-error predicate
// reports true at that moment.
type Queue struct {
	mu           sync.Mutex
	label        string
	commands     []*command.Command
	outputs      map[*command.Command]*OutputBuffer
	nextIndex    int
	state        State
	dispatched   bool
	listeners    []Listener
	cmdListeners []command.Listener
	haltOnError  func() bool
	capacity     int
	ctx          context.Context //nolint:containedctx
	done         chan struct{}
	wg           sync.WaitGroup
}

// Option configures a Queue.
type Option func(q *Queue)

// WithHaltOnError sets the predicate read each time a command fails.
// The default always halts.
func WithHaltOnError(haltOnError func() bool) Option {
	return func(q *Queue) {
		if haltOnError != nil {
			q.haltOnError = haltOnError
		}
	}
}

// WithListeners adds queue listeners.
func WithListeners(listeners ...Listener) Option {
	return func(q *Queue) {
		for _, l := range listeners {
			if l != nil {
				q.listeners = append(q.listeners, l)
			}
		}
	}
}

// WithCommandListeners adds listeners that receive the output and completion of every
// command in the queue, after the queue has recorded them.
func WithCommandListeners(listeners ...command.Listener) Option {
	return func(q *Queue) {
		for _, l := range listeners {
			if l != nil {
				q.cmdListeners = append(q.cmdListeners, l)
			}
		}
	}
}

// WithLabel names the queue in logs, progress events and history.
func WithLabel(label string) Option {
	return func(q *Queue) {
		if label != "" {
			q.label = label
		}
	}
}

// WithOutputCapacity sets how many output lines are kept per command.
func WithOutputCapacity(capacity int) Option {
	return func(q *Queue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// New creates a stopped, empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		label:       DefaultLabel,
		outputs:     make(map[*command.Command]*OutputBuffer),
		haltOnError: func() bool { return true },
		capacity:    DefaultOutputCapacity,
		state:       StateStopped,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Label returns the queue label.
func (q *Queue) Label() string {
	return q.label
}

// AddListener registers a queue listener.
func (q *Queue) AddListener(l Listener) {
	if l == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.listeners = append(q.listeners, l)
}

// SetCommands replaces the command list. It fails with ErrNotStopped unless the queue is stopped.
// The queue keeps its own copy of the slice and subscribes to every command.
func (q *Queue) SetCommands(cmds []*command.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StateStopped {
		return fmt.Errorf("%w: state is %s", ErrNotStopped, q.state)
	}

	snapshot := make([]*command.Command, 0, len(cmds))
	outputs := make(map[*command.Command]*OutputBuffer, len(cmds))

	for _, c := range cmds {
		if c == nil {
			continue
		}

		snapshot = append(snapshot, c)

		if _, ok := outputs[c]; !ok {
			outputs[c] = NewOutputBuffer(q.capacity)
		}
	}

	q.commands = snapshot
	q.outputs = outputs
	q.nextIndex = 0
	q.dispatched = false

	for _, c := range snapshot {
		c.AddListener(q)
	}

	return nil
}

// Commands returns the command snapshot.
func (q *Queue) Commands() []*command.Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.commands)
}

// IndexOf returns the position of c in the snapshot, or -1.
func (q *Queue) IndexOf(c *command.Command) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Index(q.commands, c)
}

// State returns the lifecycle state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.state
}

// Start notifies listeners and, if the queue is stopped, dispatches the first command.
// It does not wait for any command. Starting an active queue only notifies listeners.
// A snapshot can only be run once; ErrAlreadyRun is returned otherwise.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	rerun := q.state == StateStopped && q.dispatched
	q.mu.Unlock()

	if rerun {
		return ErrAlreadyRun
	}

	q.notify(func(l Listener) { l.CommandQueueStarted(q) })

	q.mu.Lock()

	if q.state != StateStopped || q.dispatched {
		q.mu.Unlock()
		return nil
	}

	q.dispatched = true
	q.ctx = ctx
	q.nextIndex = 0

	if len(q.commands) == 0 {
		q.mu.Unlock()
		q.logger().Debug("queue has no commands")
		q.notify(func(l Listener) { l.CommandQueueFinished(q) })

		return nil
	}

	q.state = StateRunning
	q.done = make(chan struct{})
	first := q.commands[0]
	q.loggerLocked().Debug("queue started", "commands", len(q.commands))
	q.mu.Unlock()

	q.dispatch(first)

	return nil
}

// dispatch announces c and runs it on a new goroutine, unless the queue stopped meanwhile.
func (q *Queue) dispatch(c *command.Command) {
	q.notify(func(l Listener) { l.CommandQueueIsProcessing(c) })

	q.mu.Lock()
	if q.state == StateStopped {
		q.mu.Unlock()
		return
	}

	q.wg.Add(1)
	ctx := q.ctx
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()

		c.Execute(ctx)
	}()
}

// CommandOutput implements command.Listener. It records line in the command's buffer.
func (q *Queue) CommandOutput(c *command.Command, line string) {
	q.mu.Lock()
	buf := q.outputs[c]
	listeners := slices.Clone(q.cmdListeners)
	q.mu.Unlock()

	if buf != nil {
		buf.Append(line)
	}

	for _, l := range listeners {
		l.CommandOutput(c, line)
	}
}

// CommandExecuted implements command.Listener. It decides whether to dispatch the next command.
func (q *Queue) CommandExecuted(c *command.Command) {
	q.mu.Lock()
	if buf := q.outputs[c]; buf != nil {
		buf.Close()
	}

	listeners := slices.Clone(q.cmdListeners)
	q.mu.Unlock()

	for _, l := range listeners {
		l.CommandExecuted(c)
	}

	status := c.Status()
	halt := status == command.StatusFail && q.haltOnError()

	q.mu.Lock()

	if q.state == StateStopped {
		q.mu.Unlock()
		return
	}

	if q.nextIndex >= len(q.commands) || q.commands[q.nextIndex] != c {
		q.mu.Unlock()
		q.logger().Warn("ignoring completion of a command that is not current", "command", c.String())

		return
	}

	var next *command.Command

	switch {
	case q.state == StateStopping:
		q.loggerLocked().Debug("queue stopping after current command", "command", c.String())
	case halt:
		q.loggerLocked().Info("command failed, halting queue", "command", c.String())
	case q.nextIndex+1 < len(q.commands):
		q.nextIndex++
		next = q.commands[q.nextIndex]
	}

	if next != nil {
		q.mu.Unlock()
		q.dispatch(next)

		return
	}

	done, stopped := q.stopLocked()
	q.mu.Unlock()

	if stopped {
		q.finished(done)
	}
}

// StopWhenCurrentCommandFinishes lets the running command finish and then stops the queue.
// It only has an effect while the queue is running.
func (q *Queue) StopWhenCurrentCommandFinishes() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StateRunning {
		return
	}

	q.state = StateStopping
	q.loggerLocked().Debug("queue will stop when the current command finishes")
}

// Kill terminates the current command, if any, and stops the queue without dispatching
// anything else. A command that was dispatched but has not started yet never starts.
// It is safe to call in any state.
//
// An error means the kill of the current command could not be confirmed; the queue is
// stopped regardless.
//
// Kill must not be called from a CommandOutput callback.
func (q *Queue) Kill(ctx context.Context) error {
	q.mu.Lock()

	if q.state == StateStopped {
		q.mu.Unlock()
		return nil
	}

	// A completion arriving while the kill is in flight must not dispatch anything.
	q.state = StateStopping

	var current *command.Command
	if q.nextIndex < len(q.commands) {
		current = q.commands[q.nextIndex]
	}
	q.mu.Unlock()

	q.logger().Info("killing queue")

	var err error
	if current != nil {
		err = current.Kill(ctx)
	}

	q.mu.Lock()
	done, stopped := q.stopLocked()
	q.mu.Unlock()

	if stopped {
		q.finished(done)
	}

	if err != nil {
		return fmt.Errorf("kill %q: %w", current.String(), err)
	}

	return nil
}

// stopLocked moves to StateStopped and reports whether the state changed.
// The caller that gets true must pass the returned channel to finished.
func (q *Queue) stopLocked() (chan struct{}, bool) {
	if q.state == StateStopped {
		return nil, false
	}

	q.state = StateStopped

	return q.done, true
}

// finished notifies listeners, then releases Wait.
func (q *Queue) finished(done chan struct{}) {
	q.logger().Debug("queue finished", "status", q.Status().String())
	q.notify(func(l Listener) { l.CommandQueueFinished(q) })

	if done != nil {
		close(done)
	}
}

// OutputForCommand returns the captured output of c.
// It fails with ErrCommandNotInQueue if c is not part of the snapshot.
func (q *Queue) OutputForCommand(c *command.Command) (*OutputBuffer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	buf, ok := q.outputs[c]
	if !ok {
		return nil, ErrCommandNotInQueue
	}

	return buf, nil
}

// Status returns the most significant status among the commands.
// While the queue is running it never reports StatusIdle.
func (q *Queue) Status() command.Status {
	q.mu.Lock()
	cmds := slices.Clone(q.commands)
	state := q.state
	q.mu.Unlock()

	statuses := make([]command.Status, 0, len(cmds))
	for _, c := range cmds {
		statuses = append(statuses, c.Status())
	}

	status := command.MostSignificant(statuses...)
	if status == command.StatusIdle && state == StateRunning {
		return command.StatusRunning
	}

	return status
}

// Wait blocks until the queue has stopped and its command goroutines have returned,
// or ctx is done. It returns immediately for a queue that was never started.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	}

	q.wg.Wait()

	return nil
}

func (q *Queue) notify(fn func(l Listener)) {
	q.mu.Lock()
	listeners := slices.Clone(q.listeners)
	q.mu.Unlock()

	for _, l := range listeners {
		fn(l)
	}
}

func (q *Queue) logger() *slog.Logger {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.loggerLocked()
}

func (q *Queue) loggerLocked() *slog.Logger {
	ctx := q.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	return ctxlog.Logger(ctx).
		With("runnableType", "CommandQueue").
		With("label", q.label)
}
