// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package command runs a single external process and reports its output and outcome.
//
// A Command is a definition (working directory, raw command line and comment) plus the
// runtime state of at most one execution. Output from stdout and stderr is combined on
// a single pipe and delivered line by line, in order, to every registered Listener.
// When the execution ends, for whatever reason, each listener is told exactly once.
//
// The command line is split on whitespace. Quoting and escaping are not supported.
package command
