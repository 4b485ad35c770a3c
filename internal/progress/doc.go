// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries live queue and command events from the execution engine
// to whatever is displaying them, such as the terminal UI or the line printer.
package progress
