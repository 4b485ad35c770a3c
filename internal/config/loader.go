// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
	"github.com/spf13/afero"
)

var (
	// ErrUnknownFileType is returned when no loader is registered for a file extension.
	ErrUnknownFileType = errors.New("unknown command tree file type")
	// ErrReadFile is returned when a command tree file cannot be read.
	ErrReadFile = errors.New("failed to read command tree file")
	// ErrWriteFile is returned when a command tree file cannot be written.
	ErrWriteFile = errors.New("failed to write command tree file")
	// ErrInvalidYaml is returned when a YAML file cannot be decoded.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrNotWritable is returned when saving to a format that is only read.
	ErrNotWritable = errors.New("file type can only be read, save to a YAML file instead")
)

// FsFactory is a function that returns an afero filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Loader decodes a command tree file. filename is used in diagnostics only.
type Loader func(ctx context.Context, data []byte, filename string) (*Definition, error)

// Loaders maps a file extension, including the dot, to its loader.
type Loaders map[string]Loader

// DefaultLoaders holds the loaders used by Load.
var DefaultLoaders = Loaders{
	".yaml": LoadYAML,
	".yml":  LoadYAML,
	".hcl":  LoadHCL,
}

// RegisterLoader registers a loader for a file extension.
func RegisterLoader(ext string, loader Loader) {
	DefaultLoaders[strings.ToLower(ext)] = loader
}

// Extensions returns the registered extensions in sorted order.
func (l Loaders) Extensions() []string {
	exts := make([]string, 0, len(l))
	for ext := range l {
		exts = append(exts, ext)
	}

	slices.Sort(exts)

	return exts
}

// Load reads, decodes and validates the command tree file at path.
func Load(ctx context.Context, path string) (*Definition, error) {
	loader, err := loaderFor(path)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return nil, errors.Join(ErrReadFile, err)
	}

	ctxlog.Debug(ctx, "loading command tree", "path", path, "bytes", len(data))

	return decode(ctx, loader, data, path)
}

// Decode decodes and validates a command tree that was read elsewhere.
// The loader is chosen by the extension of filename.
func Decode(ctx context.Context, data []byte, filename string) (*Definition, error) {
	loader, err := loaderFor(filename)
	if err != nil {
		return nil, err
	}

	return decode(ctx, loader, data, filename)
}

func loaderFor(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	loader, ok := DefaultLoaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q, expected one of %s",
			ErrUnknownFileType, ext, strings.Join(DefaultLoaders.Extensions(), ", "))
	}

	return loader, nil
}

func decode(ctx context.Context, loader Loader, data []byte, filename string) (*Definition, error) {
	def, err := loader(ctx, data, filename)
	if err != nil {
		return nil, err
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// LoadYAML decodes a YAML command tree.
func LoadYAML(_ context.Context, data []byte, filename string) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidYaml, filename, err) //nolint:errorlint
	}

	return &def, nil
}

// Save writes def to path as YAML.
func Save(ctx context.Context, path string, def *Definition) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("%w: %s", ErrNotWritable, path)
	}

	data, err := yaml.Marshal(def)
	if err != nil {
		return errors.Join(ErrWriteFile, err)
	}

	if err := afero.WriteFile(FsFactory(), path, data, 0o644); err != nil { //nolint:mnd
		return errors.Join(ErrWriteFile, err)
	}

	ctxlog.Debug(ctx, "saved command tree", "path", path)

	return nil
}
