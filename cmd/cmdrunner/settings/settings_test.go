// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package settings

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/matt-FFFFFF/cmdrunner/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

const treeYAML = `
name: sample
commands:
  - command: echo one
`

func runSettings(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := NewCommand()
	cmd.Writer = &out
	cmd.ErrWriter = io.Discard
	cmd.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := cmd.Run(context.Background(), append([]string{"settings", "-f", path}, args...))

	return out.String(), err
}

func writeTree(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(treeYAML), 0o600))

	return path
}

func TestSettings_Show(t *testing.T) {
	t.Setenv(config.HistoryDBEnvVar, "/tmp/override.db")

	out, err := runSettings(t, writeTree(t, "tree.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "halt_on_error: true\nhistory_db: /tmp/override.db\n", out)
}

func TestSettings_Update(t *testing.T) {
	t.Setenv(config.HistoryDBEnvVar, "")

	path := writeTree(t, "tree.yaml")

	out, err := runSettings(t, path, "--halt-on-error=false", "--history-db", "/var/lib/runs.db")
	require.NoError(t, err)
	assert.Equal(t, "halt_on_error: false\nhistory_db: /var/lib/runs.db\n", out)

	def, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, def.Settings.HaltOnErrorEnabled())
	assert.Equal(t, "/var/lib/runs.db", def.Settings.HistoryDB)
	require.Len(t, def.Commands, 1, "commands survive the rewrite")
	assert.Equal(t, "echo one", def.Commands[0].Command)
}

func TestSettings_UpdateHCLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`command { line = "echo one" }`), 0o600))

	_, err := runSettings(t, path, "--halt-on-error=false")

	var ec cli.ExitCoder
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 1, ec.ExitCode())
}
