// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package settings implements the settings subcommand.
package settings

import (
	"context"
	"fmt"

	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/treefile"
	"github.com/matt-FFFFFF/cmdrunner/internal/config"
	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
	"github.com/urfave/cli/v3"
)

const (
	haltOnErrorFlag = "halt-on-error"
	historyDBFlag   = "history-db"
)

// SettingsCmd shows or changes the settings stored in a command tree file.
var SettingsCmd = NewCommand()

// NewCommand creates the settings subcommand with fresh flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change the settings of a command tree file",
		Description: `Without flags, print the effective settings of a command tree file.
With flags, update the settings and write the file back. Only local YAML files can be written.`,
		Flags: []cli.Flag{
			treefile.Flag(),
			&cli.BoolFlag{
				Name:     haltOnErrorFlag,
				Usage:    "Stop a queue at its first failed command",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:      historyDBFlag,
				Usage:     "Path of the run history database",
				TakesFile: true,
				OnlyOnce:  true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String(treefile.FileFlag)

	def, err := treefile.Load(ctx, path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	changed := false

	if cmd.IsSet(haltOnErrorFlag) {
		def.Settings.SetHaltOnError(cmd.Bool(haltOnErrorFlag))
		changed = true
	}

	if cmd.IsSet(historyDBFlag) {
		def.Settings.HistoryDB = cmd.String(historyDBFlag)
		changed = true
	}

	if changed {
		if !treefile.IsLocal(path) {
			return cli.Exit(fmt.Sprintf("%s: %s", config.ErrNotWritable, path), 1)
		}

		if err := config.Save(ctx, path, def); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		ctxlog.Info(ctx, "settings saved", "path", path)
	}

	_, err = fmt.Fprintf(cmd.Writer, "halt_on_error: %t\nhistory_db: %s\n",
		def.Settings.HaltOnErrorEnabled(), def.Settings.HistoryDBPath())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}
