// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package treefile loads command tree files named on the command line.
// Local paths are read directly; anything else is fetched with go-getter.
package treefile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/cmdrunner/internal/config"
	"github.com/urfave/cli/v3"
)

// FileFlag is the name of the flag selecting the command tree file.
const FileFlag = "file"

var (
	// ErrGetConfigFile is returned when the file cannot be fetched.
	ErrGetConfigFile = errors.New("failed to get command tree file")
	// ErrNoFile is returned when no file was given.
	ErrNoFile = errors.New("no command tree file given, use --file or -f")
)

// Flag returns the --file flag shared by the subcommands.
func Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    FileFlag,
		Aliases: []string{"f"},
		Usage: "The command tree file, YAML or HCL. " +
			"Supports Hashicorp's go-getter syntax for fetching files from other sources.",
		TakesFile: true,
		OnlyOnce:  true,
	}
}

// FromCommand loads the file named by the --file flag of cmd.
func FromCommand(ctx context.Context, cmd *cli.Command) (*config.Definition, error) {
	return Load(ctx, cmd.String(FileFlag))
}

// Load loads and validates the command tree at src.
func Load(ctx context.Context, src string) (*config.Definition, error) {
	if src == "" {
		return nil, ErrNoFile
	}

	if IsLocal(src) {
		return config.Load(ctx, src) //nolint:wrapcheck
	}

	data, name, err := getURL(ctx, src)
	if err != nil {
		return nil, err
	}

	return config.Decode(ctx, data, name) //nolint:wrapcheck
}

// IsLocal reports whether src names a file on this machine rather than a go-getter source.
func IsLocal(src string) bool {
	if strings.Contains(src, "::") || strings.Contains(src, "://") {
		return false
	}

	req := &getter.Request{Src: src}
	if wd, err := os.Getwd(); err == nil {
		req.Pwd = wd
	}

	ok, err := getter.Detect(req, &getter.FileGetter{})

	return ok && err == nil
}

// getURL retrieves a remote file using Hashicorp's go-getter.
// It returns the content and the file name, and removes the temporary download.
func getURL(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", ErrGetConfigFile
	}

	tmpDir, err := os.MkdirTemp("", "cmdrunner-getter-*")
	if err != nil {
		return nil, "", errors.Join(ErrGetConfigFile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, "", errors.Join(ErrGetConfigFile, err)
	}

	// Getters fetch directories, so fetch the one holding the file.
	// https://github.com/hashicorp/go-getter/issues/98
	newURL, fileName := splitFileNameFromGetterURL(url)
	if newURL == "" || fileName == "" {
		return nil, "", fmt.Errorf("%w: invalid URL format: %s", ErrGetConfigFile, url)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     newURL,
		Dst:     filepath.Join(tmpDir, "g"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, "", errors.Join(ErrGetConfigFile, err)
	}

	data, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, "", errors.Join(ErrGetConfigFile, err)
	}

	return data, fileName, nil
}

const (
	goGetterPathSeparator = "//"
	goGetterRefSeparator  = "?"
	minimumGetterParts    = 3 // scheme, host and path
)

// splitFileNameFromGetterURL splits a go-getter URL into the URL of the directory and the file name.
// A ref query parameter is kept on the directory URL.
func splitFileNameFromGetterURL(url string) (string, string) {
	var ref string

	parts := strings.Split(url, goGetterPathSeparator)
	if len(parts) < minimumGetterParts {
		return "", ""
	}

	last := parts[len(parts)-1]

	if before, after, found := strings.Cut(last, goGetterRefSeparator); found {
		ref = after
		last = before
	}

	if filepath.Clean(last) == filepath.Dir(last) {
		return "", ""
	}

	fileName := filepath.Base(last)

	if dir := filepath.Dir(last); dir == "." {
		parts = parts[:len(parts)-1]
	} else {
		parts[len(parts)-1] = dir
	}

	newURL := strings.Join(parts, goGetterPathSeparator)

	if ref != "" {
		newURL += goGetterRefSeparator + ref
	}

	return newURL, fileName
}
