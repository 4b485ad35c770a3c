// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package command

import (
	"os"
	"slices"
	"strings"
	"sync"
)

// Listener receives the output and the completion of a command execution.
// Callbacks run on the goroutine executing the command.
type Listener interface {
	// CommandOutput is called once for every line the process writes, in order.
	CommandOutput(c *Command, line string)
	// CommandExecuted is called once, after all output, when the execution has ended.
	CommandExecuted(c *Command)
}

// Command is an external process definition plus the state of its single execution.
// Commands are compared by identity.
type Command struct {
	mu               sync.RWMutex
	directory        string
	nameAndArguments string
	comment          string
	parentDirectory  string
	status           Status
	exitCode         int
	ps               *os.Process
	stdin            *os.File
	listeners        []Listener
	started          bool
	spawned          bool
	notified         bool
	killed           bool
	inputErr         error
	finished         chan struct{} // closed once listeners have been told the execution ended
}

// New creates an idle command.
// An empty directory means the working directory is inherited.
func New(directory, nameAndArguments, comment string) *Command {
	return &Command{
		directory:        directory,
		nameAndArguments: nameAndArguments,
		comment:          comment,
		status:           StatusIdle,
		exitCode:         -1,
	}
}

// Copy returns a new idle command with the same directory, command line and comment.
// Listeners, parent directory and runtime state are not copied.
func (c *Command) Copy() *Command {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return New(c.directory, c.nameAndArguments, c.comment)
}

// Directory returns the directory the command was defined with.
func (c *Command) Directory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.directory
}

// SetDirectory sets the directory of the command definition.
func (c *Command) SetDirectory(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.directory = dir
}

// NameAndArguments returns the raw command line.
func (c *Command) NameAndArguments() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.nameAndArguments
}

// SetNameAndArguments sets the raw command line.
func (c *Command) SetNameAndArguments(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nameAndArguments = s
}

// Comment returns the comment used to select commands by name.
func (c *Command) Comment() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.comment
}

// SetComment sets the comment.
func (c *Command) SetComment(comment string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.comment = comment
}

// ParentDirectory returns the fallback directory inherited from an enclosing group.
func (c *Command) ParentDirectory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.parentDirectory
}

// SetParentDirectory sets the fallback directory used when the command has none of its own.
func (c *Command) SetParentDirectory(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.parentDirectory = dir
}

// WorkingDirectory resolves where the process runs: the command's own directory,
// else the parent directory, else "" meaning the current process's working directory.
func (c *Command) WorkingDirectory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.directory != "" {
		return c.directory
	}

	return c.parentDirectory
}

// Args splits the command line on whitespace.
// The first element is the executable.
func (c *Command) Args() []string {
	return strings.Fields(c.NameAndArguments())
}

// Status returns the current execution status.
func (c *Command) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.status
}

// ExitCode returns the exit code of the finished process, or -1 if it has not exited on its own.
func (c *Command) ExitCode() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.exitCode
}

// AddListener registers l for the next execution.
// Listeners are dropped once they have been told the execution ended.
func (c *Command) AddListener(l Listener) {
	if l == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.notified {
		return
	}

	c.listeners = append(c.listeners, l)
}

// String returns the raw command line.
func (c *Command) String() string {
	return c.NameAndArguments()
}

func (c *Command) snapshotListeners() []Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.listeners)
}

func (c *Command) emitOutput(line string) {
	for _, l := range c.snapshotListeners() {
		l.CommandOutput(c, line)
	}
}

// notifyExecuted tells every listener the execution ended, once.
func (c *Command) notifyExecuted() {
	c.mu.Lock()
	if c.notified {
		c.mu.Unlock()
		return
	}

	c.notified = true
	listeners := c.listeners
	c.listeners = nil
	finished := c.finished
	c.mu.Unlock()

	for _, l := range listeners {
		l.CommandExecuted(c)
	}

	if finished != nil {
		close(finished)
	}
}
