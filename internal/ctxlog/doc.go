// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a slog logger in a context.Context.
//
// The default is a pretty console handler that prints the time, level and message on one
// line followed by the attributes as JSON. The level is read from CMDRUNNER_LOG_LEVEL.
package ctxlog
