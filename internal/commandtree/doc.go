// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package commandtree holds the editable tree of command definitions and selects
// run-ready copies of them.
package commandtree
