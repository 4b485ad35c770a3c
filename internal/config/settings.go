// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Settings are the persisted program settings stored alongside the command tree.
type Settings struct {
	// HaltOnError stops a queue at the first failed command. Nil means the default, true.
	HaltOnError *bool `yaml:"halt_on_error,omitempty"`
	// HistoryDB is the path of the run history database. Empty means DefaultHistoryDB.
	HistoryDB string `yaml:"history_db,omitempty"`
}

const (
	// HistoryDBEnvVar overrides the history database location.
	HistoryDBEnvVar = "CMDRUNNER_HISTORY_DB"
	historyDBName   = "history.db"
	appDirName      = ".cmdrunner"
)

// HaltOnErrorEnabled returns the effective halt-on-error policy.
func (s Settings) HaltOnErrorEnabled() bool {
	if s.HaltOnError == nil {
		return true
	}

	return *s.HaltOnError
}

// SetHaltOnError sets the halt-on-error policy.
func (s *Settings) SetHaltOnError(v bool) {
	s.HaltOnError = &v
}

// HistoryDBPath returns the history database path: the environment override,
// then the configured path with a leading ~ expanded, then DefaultHistoryDB.
func (s Settings) HistoryDBPath() string {
	if p := os.Getenv(HistoryDBEnvVar); p != "" {
		return p
	}

	if s.HistoryDB == "" {
		return DefaultHistoryDB()
	}

	if rest, ok := strings.CutPrefix(s.HistoryDB, "~"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}

	return s.HistoryDB
}

// DefaultHistoryDB returns ~/.cmdrunner/history.db, or a path in the working directory
// if there is no home directory.
func DefaultHistoryDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(appDirName, historyDBName)
	}

	return filepath.Join(home, appDirName, historyDBName)
}
