// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the cmdrunner command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/cmdrunner"
	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/cmdstate"
	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/history"
	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/list"
	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/run"
	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/settings"
	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
	"github.com/matt-FFFFFF/cmdrunner/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

const (
	logFormatFlag = "log-format"
	logFormatJSON = "json"
	logFormatText = "text"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		list.ListCmd,
		settings.SettingsCmd,
		history.HistoryCmd,
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  logFormatFlag,
			Usage: "Log format, text or json. Set the level with CMDRUNNER_LOG_LEVEL.",
			Value: logFormatText,
			Validator: func(s string) error {
				if s != logFormatText && s != logFormatJSON {
					return fmt.Errorf("unknown log format %q", s)
				}

				return nil
			},
		},
	},
	Before:    setLogger,
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "cmdrunner",
	Description: `cmdrunner runs a tree of shell commands kept in a YAML or HCL file.
Commands run one after another in a queue that stops at the first failure,
or each in its own queue in parallel. Output is streamed as it arrives,
and runs can be recorded to a local history database.`,
	Usage:     "cmdrunner run -f commands.yaml",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func setLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.String(logFormatFlag) == logFormatJSON {
		return ctxlog.New(ctx, ctxlog.JSONLogger), nil
	}

	return ctx, nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)

	defer cancel()

	sigCh := signalbroker.New(ctx)
	defer signalbroker.Stop(sigCh)

	go signalbroker.Watch(ctx, sigCh, signalbroker.Handlers{
		Graceful: func() {
			if !cmdstate.StopAll() {
				cancel()
			}
		},
		Force: func() {
			ran, err := cmdstate.KillAll(ctx)
			if err != nil {
				ctxlog.Error(ctx, "failed to kill running commands", "error", err)
			}

			if !ran || err != nil {
				cancel()
			}
		},
	})

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", cmdrunner.Version, cmdrunner.Commit)

	err := rootCmd.Run(ctx, os.Args) // Exit codes are handled by the cli framework

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
