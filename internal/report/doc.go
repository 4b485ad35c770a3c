// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package report renders queues for a terminal.
// WriteSummary prints the outcome of finished queues; LinePrinter streams progress events as they happen.
package report
