// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a real-time terminal user interface for watching queues run.
// It displays a tree of queues and their commands with a status icon, the elapsed time,
// and the last output line of each running command.
//
// The model is fed by progress events, and can stop or kill the queues it shows.
package tui
