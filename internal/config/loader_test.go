// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	stubs := gostub.Stub(&FsFactory, func() afero.Fs { return fs })
	t.Cleanup(stubs.Reset)

	return fs
}

const treeYAML = `
name: project
description: build and test
settings:
  halt_on_error: false
  history_db: /tmp/runs.db
commands:
  - name: build
    directory: /src/app
    comment: all
    commands:
      - command: make all
        comment: build
      - command: make test
        directory: /src/app/test
  - command: echo done
    comment: build
`

func TestLoad_YAML(t *testing.T) {
	memFs(t, map[string]string{"/tree.yaml": treeYAML})

	def, err := Load(context.Background(), "/tree.yaml")
	require.NoError(t, err)

	assert.Equal(t, "project", def.Name)
	assert.Equal(t, "build and test", def.Description)
	assert.False(t, def.Settings.HaltOnErrorEnabled())
	assert.Equal(t, "/tmp/runs.db", def.Settings.HistoryDB)

	require.Len(t, def.Commands, 2)

	group := def.Commands[0]
	assert.False(t, group.IsCommand())
	assert.Equal(t, "build", group.Name)
	assert.Equal(t, "/src/app", group.Directory)
	require.Len(t, group.Commands, 2)
	assert.Equal(t, "make all", group.Commands[0].Command)
	assert.Equal(t, "build", group.Commands[0].Comment)
	assert.Equal(t, "/src/app/test", group.Commands[1].Directory)

	assert.True(t, def.Commands[1].IsCommand())
}

func TestLoad_Errors(t *testing.T) {
	memFs(t, map[string]string{
		"/bad.yaml":    "commands: [\n",
		"/invalid.yml": "commands:\n  - comment: no name\n  - command: ls\n    commands:\n      - command: pwd\n",
		"/bad.hcl":     "group {",
		"/tree.json":   "{}",
		"/dup.yaml":    "commands:\n  - name: a\n  - name: a\n  - name: a/b\n",
	})

	tests := []struct {
		name   string
		path   string
		target error
	}{
		{name: "unknown extension", path: "/tree.json", target: ErrUnknownFileType},
		{name: "missing file", path: "/nope.yaml", target: ErrReadFile},
		{name: "broken yaml", path: "/bad.yaml", target: ErrInvalidYaml},
		{name: "broken hcl", path: "/bad.hcl", target: ErrParseHCLFile},
		{name: "group without name", path: "/invalid.yml", target: ErrGroupWithoutName},
		{name: "command with children", path: "/invalid.yml", target: ErrNodeBothGroupAndCommand},
		{name: "duplicate group", path: "/dup.yaml", target: ErrDuplicateGroupName},
		{name: "slash in name", path: "/dup.yaml", target: ErrNameContainsSlash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Load(context.Background(), tt.path)
			require.ErrorIs(t, err, tt.target)
			assert.Nil(t, def)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	def := &Definition{Commands: []*NodeDefinition{
		{Comment: "nameless"},
		{Name: "x", Commands: []*NodeDefinition{{Name: ""}, nil}},
	}}

	err := def.Validate()
	require.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Contains(t, err.Error(), "[0]: group has no name")
	assert.Contains(t, err.Error(), "[1]/x[0]: group has no name")
}

func TestSave(t *testing.T) {
	fs := memFs(t, map[string]string{"/tree.yaml": treeYAML})

	def, err := Load(context.Background(), "/tree.yaml")
	require.NoError(t, err)

	def.Settings.SetHaltOnError(true)
	require.NoError(t, Save(context.Background(), "/saved.yml", def))

	exists, err := afero.Exists(fs, "/saved.yml")
	require.NoError(t, err)
	require.True(t, exists)

	reloaded, err := Load(context.Background(), "/saved.yml")
	require.NoError(t, err)
	assert.True(t, reloaded.Settings.HaltOnErrorEnabled())
	assert.Equal(t, def.Commands, reloaded.Commands)

	require.ErrorIs(t, Save(context.Background(), "/tree.hcl", def), ErrNotWritable)
}

func TestRegisterLoader(t *testing.T) {
	stubs := gostub.Stub(&DefaultLoaders, Loaders{})
	defer stubs.Reset()

	memFs(t, map[string]string{"/tree.txt": "echo one"})

	RegisterLoader(".TXT", func(_ context.Context, data []byte, _ string) (*Definition, error) {
		return &Definition{Commands: []*NodeDefinition{{Command: string(data)}}}, nil
	})

	assert.Equal(t, []string{".txt"}, DefaultLoaders.Extensions())

	def, err := Load(context.Background(), "/tree.txt")
	require.NoError(t, err)
	assert.Equal(t, "echo one", def.Commands[0].Command)
}

func TestDecode(t *testing.T) {
	def, err := Decode(context.Background(), []byte(treeYAML), "remote/tree.YML")
	require.NoError(t, err)
	assert.Equal(t, "project", def.Name)

	_, err = Decode(context.Background(), []byte("commands:\n  - comment: x\n"), "tree.yaml")
	require.ErrorIs(t, err, ErrGroupWithoutName, "decoded trees are validated")

	_, err = Decode(context.Background(), []byte("{}"), "tree")
	require.ErrorIs(t, err, ErrUnknownFileType)
}
