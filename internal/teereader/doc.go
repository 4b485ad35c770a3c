// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package teereader provides a reader that splits the data passing through it into lines.
// Every complete line is handed to a callback as soon as it is read, and the most recent
// line is kept for progress display. Lines have no length limit.
package teereader
