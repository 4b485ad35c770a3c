// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package command

import (
	"slices"
)

// Status is the execution status of a command.
type Status int

const (
	// StatusIdle means the command has not run, or was killed before it exited on its own.
	StatusIdle Status = iota
	// StatusRunning means the command has been dispatched and has not finished.
	StatusRunning
	// StatusOK means the process exited with code 0.
	StatusOK
	// StatusFail means the process exited non-zero, or could not be started or read.
	StatusFail
)

// String implements the Stringer interface for Status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusOK:
		return "ok"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusIdle, StatusRunning, StatusOK, StatusFail} {
		if st.String() == s {
			return st, true
		}
	}

	return StatusIdle, false
}

// significance ranks statuses for aggregation, higher wins.
func (s Status) significance() int {
	switch s {
	case StatusRunning:
		return 3 //nolint:mnd
	case StatusFail:
		return 2 //nolint:mnd
	case StatusIdle:
		return 1
	default:
		return 0
	}
}

// MoreSignificant reports whether s should be shown in preference to other.
func (s Status) MoreSignificant(other Status) bool {
	return s.significance() > other.significance()
}

// MostSignificant returns the status needing the most attention: RUNNING, then FAIL, then IDLE, then OK.
// An empty argument list yields StatusIdle, as nothing has run.
func MostSignificant(statuses ...Status) Status {
	if len(statuses) == 0 {
		return StatusIdle
	}

	most := statuses[0]
	for _, s := range statuses[1:] {
		if s.MoreSignificant(most) {
			most = s
		}
	}

	return most
}

// SortBySignificance sorts statuses in place, most significant first.
func SortBySignificance(statuses []Status) {
	slices.SortStableFunc(statuses, func(a, b Status) int {
		return b.significance() - a.significance()
	})
}

// ProcessState is what the process layer knows about an execution.
// It is one of NotStarted, Running or Exited.
type ProcessState interface {
	processState()
}

// NotStarted is the state of a process that has not been launched.
type NotStarted struct{}

// Running is the state of a live process.
type Running struct{}

// Exited is the state of a process that has terminated with Code.
type Exited struct {
	Code int
}

func (NotStarted) processState() {}
func (Running) processState()    {}
func (Exited) processState()     {}

// StatusFromProcessState classifies a process state.
func StatusFromProcessState(ps ProcessState) Status {
	switch s := ps.(type) {
	case Running:
		return StatusRunning
	case Exited:
		if s.Code == 0 {
			return StatusOK
		}

		return StatusFail
	default:
		return StatusIdle
	}
}
