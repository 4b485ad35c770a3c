// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color colorizes terminal output with ANSI escape codes.
// Color is on when stdout is a terminal, unless NO_COLOR is set; FORCE_COLOR turns it on elsewhere.
package color
