// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package history implements the history subcommand.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/treefile"
	"github.com/matt-FFFFFF/cmdrunner/internal/color"
	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/config"
	"github.com/matt-FFFFFF/cmdrunner/internal/history"
	"github.com/matt-FFFFFF/cmdrunner/internal/report"
	"github.com/urfave/cli/v3"
)

const (
	dbFlag       = "db"
	limitFlag    = "limit"
	outputFlag   = "output"
	idArg        = "id"
	defaultLimit = 20
	timeLayout   = "2006-01-02 15:04:05"
)

// ErrNoRunID is returned when show is called without a run id.
var ErrNoRunID = errors.New("no run id given")

// HistoryCmd reads the run history database.
var HistoryCmd = NewCommand()

// NewCommand creates the history subcommand with fresh flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show runs saved with run --record",
		Description: `Read the run history database. The database is the one named by --db, else the one
in the settings of the --file command tree, else $CMDRUNNER_HISTORY_DB, else ~/.cmdrunner/history.db.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      dbFlag,
				Usage:     "Path of the run history database",
				TakesFile: true,
				OnlyOnce:  true,
			},
			treefile.Flag(),
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the most recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    limitFlag,
						Aliases: []string{"n"},
						Usage:   "Number of runs to show, 0 for all",
						Value:   defaultLimit,
					},
				},
				Action: listAction,
			},
			{
				Name:  "show",
				Usage: "Show one run with its commands. The id may be a unique prefix.",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: idArg,
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:     outputFlag,
						Aliases:  []string{"o"},
						Usage:    "Include the saved output of every command",
						OnlyOnce: true,
					},
				},
				Action: showAction,
			},
		},
	}
}

// dbPath resolves the database location from the flags of the history command.
func dbPath(ctx context.Context, cmd *cli.Command) (string, error) {
	if p := cmd.String(dbFlag); p != "" {
		return p, nil
	}

	if f := cmd.String(treefile.FileFlag); f != "" {
		def, err := treefile.Load(ctx, f)
		if err != nil {
			return "", err //nolint:wrapcheck
		}

		return def.Settings.HistoryDBPath(), nil
	}

	return config.Settings{}.HistoryDBPath(), nil
}

func openStore(ctx context.Context, cmd *cli.Command) (*history.Store, error) {
	path, err := dbPath(ctx, cmd)
	if err != nil {
		return nil, err
	}

	return history.Open(ctx, path) //nolint:wrapcheck
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	store, err := openStore(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	defer store.Close() //nolint:errcheck

	runs, err := store.List(ctx, cmd.Int(limitFlag))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := writeRuns(cmd.Writer, runs); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

func showAction(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg(idArg)
	if id == "" {
		return cli.Exit(ErrNoRunID.Error(), 1)
	}

	store, err := openStore(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	defer store.Close() //nolint:errcheck

	run, err := store.Get(ctx, id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := writeRun(cmd.Writer, run, cmd.Bool(outputFlag)); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

func glyph(status string) string {
	s, ok := command.ParseStatus(status)
	if !ok {
		return "?"
	}

	return report.Glyph(s)
}

func writeRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err //nolint:wrapcheck
	}

	for _, r := range runs {
		if _, err := fmt.Fprintf(w, "%s %s  %s  %s  %v\n",
			glyph(r.Status), r.ID, r.StartedAt.Local().Format(timeLayout), r.Queue,
			r.Duration().Round(time.Millisecond),
		); err != nil {
			return fmt.Errorf("failed to write runs: %w", err)
		}
	}

	return nil
}

func writeRun(w io.Writer, run *history.Run, withOutput bool) error {
	if _, err := fmt.Fprintf(w, "%s %s %s\nstarted:  %s\nduration: %v\n",
		glyph(run.Status), color.Colorize(run.Queue, color.Bold), run.ID,
		run.StartedAt.Local().Format(timeLayout), run.Duration().Round(time.Millisecond),
	); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}

	for _, c := range run.Commands {
		line := fmt.Sprintf("  %s %s", glyph(c.Status), c.Command)

		if c.ExitCode > 0 {
			line += fmt.Sprintf(" (exit code: %d)", c.ExitCode)
		}

		if c.Directory != "" {
			line += " (cwd: " + c.Directory + ")"
		}

		if c.Comment != "" {
			line += color.Colorize(" # "+c.Comment, color.Faint)
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write run: %w", err)
		}

		if !withOutput {
			continue
		}

		for _, l := range c.Output {
			if _, err := fmt.Fprintf(w, "     %s\n", l); err != nil {
				return fmt.Errorf("failed to write run: %w", err)
			}
		}
	}

	return nil
}
