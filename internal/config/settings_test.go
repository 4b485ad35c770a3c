// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettings_HaltOnError(t *testing.T) {
	var s Settings
	assert.True(t, s.HaltOnErrorEnabled(), "halting is the default")

	s.SetHaltOnError(false)
	assert.False(t, s.HaltOnErrorEnabled())

	s.SetHaltOnError(true)
	assert.True(t, s.HaltOnErrorEnabled())
}

func TestSettings_HistoryDBPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name     string
		setting  string
		env      string
		expected string
	}{
		{name: "default", expected: filepath.Join(home, ".cmdrunner", "history.db")},
		{name: "configured", setting: "/var/lib/runs.db", expected: "/var/lib/runs.db"},
		{name: "home expanded", setting: "~/runs.db", expected: filepath.Join(home, "runs.db")},
		{name: "environment wins", setting: "/var/lib/runs.db", env: "/tmp/env.db", expected: "/tmp/env.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(HistoryDBEnvVar, tt.env)

			s := Settings{HistoryDB: tt.setting}
			assert.Equal(t, tt.expected, s.HistoryDBPath())
		})
	}
}
