// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package list implements the list subcommand.
package list

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/TylerBrock/colorjson"
	"github.com/matt-FFFFFF/cmdrunner/cmd/cmdrunner/treefile"
	"github.com/matt-FFFFFF/cmdrunner/internal/color"
	"github.com/matt-FFFFFF/cmdrunner/internal/commandtree"
	"github.com/urfave/cli/v3"
)

const (
	jsonFlag   = "json"
	jsonIndent = 2
)

// ListCmd prints the command tree.
var ListCmd = NewCommand()

// NewCommand creates the list subcommand with fresh flag state.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Show the commands of a command tree file",
		Description: `Show the groups and commands of a command tree file with their directories and comments.
Each line ends with the tree path that run --select accepts.`,
		Flags: []cli.Flag{
			treefile.Flag(),
			&cli.BoolFlag{
				Name:     jsonFlag,
				Usage:    "Print the tree as JSON",
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	def, err := treefile.FromCommand(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	tree := commandtree.Build(def)

	if cmd.Bool(jsonFlag) {
		err = writeJSON(cmd.Writer, tree.Views())
	} else {
		err = writeText(cmd.Writer, tree)
	}

	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

// writeJSON prints views through colorjson, which only formats generic values,
// so the views are converted to maps first.
func writeJSON(w io.Writer, views []commandtree.View) error {
	raw, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}

	var generic []any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}

	f := colorjson.NewFormatter()
	f.Indent = jsonIndent
	f.DisabledColor = !color.Enabled()

	out, err := f.Marshal(generic)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}

	if _, err := fmt.Fprintln(w, string(out)); err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}

	return nil
}

func writeText(w io.Writer, tree *commandtree.Tree) error {
	var b strings.Builder

	if tree.Name != "" {
		b.WriteString(color.Colorize(tree.Name, color.Bold))
		b.WriteString("\n")
	}

	tree.Walk(func(n *commandtree.Node, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))

		if n.IsGroup() {
			b.WriteString(color.Colorize("▸ "+n.Name()+"/", color.Bold, color.FgBlue))

			if n.Directory() != "" {
				b.WriteString(" (" + n.Directory() + ")")
			}
		} else {
			b.WriteString("• " + n.Name())

			if dir := n.Command().WorkingDirectory(); dir != "" {
				b.WriteString(" (cwd: " + dir + ")")
			}
		}

		if n.Comment() != "" {
			b.WriteString(color.Colorize(" # "+n.Comment(), color.FgGreen))
		}

		b.WriteString(color.Colorize("  ["+n.Path()+"]", color.Faint))
		b.WriteString("\n")

		return true
	})

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}

	return nil
}
