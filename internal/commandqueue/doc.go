// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package commandqueue runs lists of commands one at a time.
//
// A Queue dispatches each command on its own goroutine and advances when that command
// reports completion. It can be stopped gracefully, after the current command, or killed.
// The last lines of output of every command are kept in an OutputBuffer.
//
// Parallel runs are built from one single-command queue per command, see RunParallel.
package commandqueue
