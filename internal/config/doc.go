// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads command tree files and the settings stored with them.
//
// Trees are written in YAML or HCL, chosen by file extension. Files are read through
// FsFactory so tests can substitute an in-memory file system.
package config
