// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run implements the run subcommand.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/cmdstate"
	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/treefile"
	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/commandqueue"
	"github.com/matt-FFFFFF/cmdrunner/internal/commandtree"
	"github.com/matt-FFFFFF/cmdrunner/internal/config"
	"github.com/matt-FFFFFF/cmdrunner/internal/ctxlog"
	"github.com/matt-FFFFFF/cmdrunner/internal/history"
	"github.com/matt-FFFFFF/cmdrunner/internal/progress"
	"github.com/matt-FFFFFF/cmdrunner/internal/report"
	"github.com/matt-FFFFFF/cmdrunner/internal/tui"
	"github.com/urfave/cli/v3"
)

const (
	commentFlag         = "comment"
	selectFlag          = "select"
	allFlag             = "all"
	parallelFlag        = "parallel"
	tuiFlag             = "tui"
	interactiveFlag     = "interactive"
	haltOnErrorFlag     = "halt-on-error"
	outputFlag          = "output"
	successDetailsFlag  = "output-success-details"
	recordFlag          = "record"
	reporterBufferSize  = 256
	cliExitStr          = ""
	stoppedEarlyMessage = "stopped before every command ran"
)

var (
	// ErrConflictingSelection is returned when more than one way of selecting commands is given.
	ErrConflictingSelection = errors.New("use only one of --comment, --select and --all")
	// ErrNothingSelected is returned when the selection matches no command.
	ErrNothingSelected = errors.New("no commands selected")
	// ErrInteractiveWithTUI is returned when input forwarding is combined with the TUI.
	ErrInteractiveWithTUI = errors.New("--interactive cannot be combined with --tui")
)

// RunCmd runs commands from a command tree file.
var RunCmd = NewCommand()

// NewCommand creates the run subcommand with fresh flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run commands from a command tree file",
		Description: `Run commands defined in a YAML or HCL command tree file.

By default every command in the tree runs, in tree order, in one queue. A queue stops at the
first failed command unless halt on error is disabled in the file settings or with
--halt-on-error=false.

Select a subset with --comment, which runs every command with that comment (a group's
comment selects the whole group), or with --select and a tree path such as build/#2.
With --parallel every selected command runs in its own queue, all at once.

The first interrupt stops the queues once their current commands finish; the second kills them.

Tree file URLs use Hashicorp's go-getter syntax, which allows for fetching files from various sources.
See https://github.com/hashicorp/go-getter.`,
		Flags: []cli.Flag{
			treefile.Flag(),
			&cli.StringFlag{
				Name:     commentFlag,
				Aliases:  []string{"c"},
				Usage:    "Run the commands with this comment",
				OnlyOnce: true,
			},
			&cli.StringSliceFlag{
				Name:    selectFlag,
				Aliases: []string{"s"},
				Usage:   "Run the commands under this tree path. Specify multiple times to select more.",
			},
			&cli.BoolFlag{
				Name:     allFlag,
				Usage:    "Run every command in the tree. This is the default.",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     parallelFlag,
				Aliases:  []string{"p"},
				Usage:    "Run every selected command in its own queue, all at once",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     tuiFlag,
				Aliases:  []string{"t"},
				Usage:    "Run with a terminal user interface showing real-time progress",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     interactiveFlag,
				Aliases:  []string{"i"},
				Usage:    "Forward lines typed on the terminal to the standard input of the running commands",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:        haltOnErrorFlag,
				Usage:       "Stop a queue at its first failed command. Overrides the file settings.",
				DefaultText: "from settings, true",
				OnlyOnce:    true,
			},
			&cli.BoolFlag{
				Name:     outputFlag,
				Aliases:  []string{"o"},
				Usage:    "Include the output of failed commands in the summary",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     successDetailsFlag,
				Aliases:  []string{"success"},
				Usage:    "With --output, include the output of successful commands too",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     recordFlag,
				Aliases:  []string{"r"},
				Usage:    "Save the run to the history database",
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

type launcher func(ctx context.Context, reporter progress.Reporter) (*commandqueue.Group, error)

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("running run command")

	if cmd.Bool(interactiveFlag) && cmd.Bool(tuiFlag) {
		return cli.Exit(ErrInteractiveWithTUI.Error(), 1)
	}

	def, err := treefile.FromCommand(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cmds, err := selectCommands(commandtree.Build(def), cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	opts := queueOptions(def, cmd)

	var recorder *history.Recorder

	if cmd.Bool(recordFlag) {
		store, err := history.Open(ctx, def.Settings.HistoryDBPath())
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		defer store.Close() //nolint:errcheck

		recorder = history.NewRecorder(ctx, store)
		opts = append(opts, commandqueue.WithListeners(recorder))
	}

	parallel := cmd.Bool(parallelFlag)

	launch := func(ctx context.Context, reporter progress.Reporter) (*commandqueue.Group, error) {
		o := append(slices.Clone(opts), commandqueue.WithReporter(reporter))

		var (
			group *commandqueue.Group
			err   error
		)

		if parallel {
			group, err = commandqueue.RunParallel(ctx, cmds, o...)
		} else {
			group, err = commandqueue.RunSequential(ctx, cmds, o...)
		}

		if group != nil {
			cmdstate.SetGroup(group)
		}

		return group, err //nolint:wrapcheck
	}

	defer cmdstate.SetGroup(nil)

	var group *commandqueue.Group

	if cmd.Bool(tuiFlag) {
		logger.Info("starting interactive TUI mode")

		group, err = tui.NewRunner(ctx).Run(ctx, launch, cmd.ErrWriter)
	} else {
		group, err = runHeadless(ctx, cmd, launch, parallel && len(cmds) > 1)
	}

	if err != nil {
		logger.Error("run did not complete cleanly", "error", err)
	}

	if group == nil {
		return cli.Exit(fmt.Sprintf("failed to start: %v", err), 1)
	}

	opt := report.DefaultOptions()
	opt.IncludeOutput = cmd.Bool(outputFlag)
	opt.ShowSuccessDetails = cmd.Bool(successDetailsFlag)

	if _, err := fmt.Fprintln(cmd.Writer); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := report.WriteSummary(cmd.Writer, group.Queues(), opt); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if recorder != nil {
		writeRecorded(ctx, cmd.Writer, recorder)
	}

	return exitFor(group.Status())
}

// queueOptions builds the queue options from the file settings and the flags.
func queueOptions(def *config.Definition, cmd *cli.Command) []commandqueue.Option {
	halt := def.Settings.HaltOnErrorEnabled()
	if cmd.IsSet(haltOnErrorFlag) {
		halt = cmd.Bool(haltOnErrorFlag)
	}

	label := def.Name
	if label == "" {
		label = commandqueue.DefaultLabel
	}

	return []commandqueue.Option{
		commandqueue.WithHaltOnError(func() bool { return halt }),
		commandqueue.WithLabel(label),
	}
}

// selectCommands returns run-ready copies of the commands chosen by the flags.
func selectCommands(tree *commandtree.Tree, cmd *cli.Command) ([]*command.Command, error) {
	comment := cmd.String(commentFlag)
	paths := cmd.StringSlice(selectFlag)

	chosen := 0

	for _, set := range []bool{comment != "", len(paths) > 0, cmd.Bool(allFlag)} {
		if set {
			chosen++
		}
	}

	if chosen > 1 {
		return nil, ErrConflictingSelection
	}

	var cmds []*command.Command

	switch {
	case comment != "":
		cmds = tree.WithComment(comment)
	case len(paths) > 0:
		nodes := make([]*commandtree.Node, 0, len(paths))

		for _, p := range paths {
			n, err := tree.Find(p)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}

			nodes = append(nodes, n)
		}

		cmds = commandtree.Snapshot(nodes...)
	default:
		cmds = tree.All()
	}

	if len(cmds) == 0 {
		return nil, ErrNothingSelected
	}

	return cmds, nil
}

// runHeadless streams the output of the queues to the command writer until they finish.
func runHeadless(ctx context.Context, cmd *cli.Command, launch launcher, prefixLabels bool) (*commandqueue.Group, error) {
	reporter := progress.NewChannelReporter(ctx, reporterBufferSize)
	printer := report.NewLinePrinter(cmd.Writer, prefixLabels)
	reporter.Listen(printer)

	group, err := launch(ctx, reporter)
	if group == nil {
		reporter.Close()
		return nil, err
	}

	if cmd.Bool(interactiveFlag) {
		stop, ferr := forwardTerminalInput(ctx, group)
		if ferr != nil {
			ctxlog.Warn(ctx, "input forwarding unavailable", "error", ferr)
		} else {
			defer stop()
		}
	}

	waitErr := group.Wait(ctx)
	reporter.Close()

	return group, errors.Join(err, waitErr, printer.Err())
}

func writeRecorded(ctx context.Context, w io.Writer, recorder *history.Recorder) {
	if err := recorder.Err(); err != nil {
		ctxlog.Error(ctx, "some runs were not recorded", "error", err)
	}

	if ids := recorder.IDs(); len(ids) > 0 {
		fmt.Fprintf(w, "recorded run %s\n", strings.Join(ids, ", ")) //nolint:errcheck
	}
}

// exitFor maps the final status to the process exit: OK exits zero, anything else non-zero.
func exitFor(status command.Status) error {
	switch status {
	case command.StatusOK:
		return nil
	case command.StatusFail:
		return cli.Exit(cliExitStr, 1)
	default:
		return cli.Exit(stoppedEarlyMessage, 1)
	}
}
