// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandtree

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/matt-FFFFFF/cmdrunner/internal/command"
	"github.com/matt-FFFFFF/cmdrunner/internal/config"
)

var (
	// ErrNodeNotFound is returned when a path does not resolve to a node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrEmptyPath is returned when looking up an empty path.
	ErrEmptyPath = errors.New("empty path")
)

// PathSeparator separates the elements of a node path.
const PathSeparator = "/"

// Node is a group of nodes or a single command.
type Node struct {
	name      string
	directory string
	comment   string
	command   *command.Command
	children  []*Node
	parent    *Node
	index     int // position among siblings

	mu      sync.RWMutex
	lastRun *command.Command
}

// Tree is a command tree built from a definition.
type Tree struct {
	Name  string
	roots []*Node
}

// Build creates a tree from a validated definition.
// Each command gets the directory of its nearest ancestor group that has one as its parent directory.
func Build(def *config.Definition) *Tree {
	t := &Tree{Name: def.Name}
	t.roots = buildNodes(def.Commands, nil)

	return t
}

func buildNodes(defs []*config.NodeDefinition, parent *Node) []*Node {
	nodes := make([]*Node, 0, len(defs))

	for _, d := range defs {
		if d == nil {
			continue
		}

		n := &Node{
			name:      d.Name,
			directory: d.Directory,
			comment:   d.Comment,
			parent:    parent,
			index:     len(nodes),
		}

		if d.IsCommand() {
			n.command = command.New(d.Directory, d.Command, d.Comment)
			n.command.SetParentDirectory(n.inheritedDirectory())
		} else {
			n.children = buildNodes(d.Commands, n)
		}

		nodes = append(nodes, n)
	}

	return nodes
}

// inheritedDirectory returns the nearest non-empty directory of an ancestor group.
func (n *Node) inheritedDirectory() string {
	for p := n.parent; p != nil; p = p.parent {
		if p.directory != "" {
			return p.directory
		}
	}

	return ""
}

// Roots returns the top level nodes.
func (t *Tree) Roots() []*Node {
	return slices.Clone(t.roots)
}

// IsGroup reports whether the node is a group.
func (n *Node) IsGroup() bool {
	return n.command == nil
}

// Name returns the group name, or the command line of a command.
func (n *Node) Name() string {
	if n.command != nil {
		return n.command.NameAndArguments()
	}

	return n.name
}

// Directory returns the directory set on the node itself.
func (n *Node) Directory() string {
	return n.directory
}

// Comment returns the node comment.
func (n *Node) Comment() string {
	return n.comment
}

// Command returns the command definition of a command node, nil for groups.
// It is never run itself; runs use copies made by Snapshot.
func (n *Node) Command() *command.Command {
	return n.command
}

// Children returns the child nodes of a group.
func (n *Node) Children() []*Node {
	return slices.Clone(n.children)
}

// Parent returns the enclosing group, nil for top level nodes.
func (n *Node) Parent() *Node {
	return n.parent
}

// Path returns the slash separated location of the node. Groups appear by name,
// commands by their 1-based position among their siblings, as in "build/#2".
func (n *Node) Path() string {
	var parts []string

	for c := n; c != nil; c = c.parent {
		parts = append(parts, c.segment())
	}

	slices.Reverse(parts)

	return strings.Join(parts, PathSeparator)
}

func (n *Node) segment() string {
	if n.IsGroup() {
		return n.name
	}

	return "#" + strconv.Itoa(n.index+1)
}

// LastRun returns the copy of the command used by the most recent snapshot, if any.
func (n *Node) LastRun() *command.Command {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.lastRun
}

// Walk visits every node depth first, in tree order.
// Children are skipped when fn returns false.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	walk(t.roots, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(n *Node, depth int) bool) {
	for _, n := range nodes {
		if fn(n, depth) {
			walk(n.children, depth+1, fn)
		}
	}
}

// Find resolves a path as returned by Node.Path.
// Top level commands are addressed as "#N" among the top level nodes.
func (t *Tree) Find(path string) (*Node, error) {
	path = strings.Trim(path, PathSeparator)
	if path == "" {
		return nil, ErrEmptyPath
	}

	nodes := t.roots

	var found *Node

	for _, part := range strings.Split(path, PathSeparator) {
		found = findChild(nodes, part)
		if found == nil {
			return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, path)
		}

		nodes = found.children
	}

	return found, nil
}

func findChild(nodes []*Node, part string) *Node {
	if rest, ok := strings.CutPrefix(part, "#"); ok {
		i, err := strconv.Atoi(rest)
		if err != nil || i < 1 || i > len(nodes) {
			return nil
		}

		return nodes[i-1]
	}

	for _, n := range nodes {
		if n.IsGroup() && n.name == part {
			return n
		}
	}

	return nil
}

// Flatten returns every command node in tree order.
func (t *Tree) Flatten() []*Node {
	return flatten(t.roots)
}

func flatten(nodes []*Node) []*Node {
	var out []*Node

	walk(nodes, 0, func(n *Node, _ int) bool {
		if !n.IsGroup() {
			out = append(out, n)
		}

		return true
	})

	return out
}

// Snapshot returns run-ready copies of every command under the given nodes, in tree
// order, each command once. Every copy is remembered as the node's last run.
func Snapshot(nodes ...*Node) []*command.Command {
	seen := make(map[*Node]bool)

	var cmds []*command.Command

	for _, n := range nodes {
		if n == nil {
			continue
		}

		for _, leaf := range flatten([]*Node{n}) {
			if seen[leaf] {
				continue
			}

			seen[leaf] = true

			c := leaf.command.Copy()
			c.SetParentDirectory(leaf.command.ParentDirectory())

			leaf.mu.Lock()
			leaf.lastRun = c
			leaf.mu.Unlock()

			cmds = append(cmds, c)
		}
	}

	return cmds
}

// All returns a snapshot of every command in the tree.
func (t *Tree) All() []*command.Command {
	return Snapshot(t.roots...)
}

// WithComment returns a snapshot of the commands whose comment is comment, and of
// every command inside a group with that comment. An empty comment selects nothing.
func (t *Tree) WithComment(comment string) []*command.Command {
	if comment == "" {
		return nil
	}

	var selected []*Node

	t.Walk(func(n *Node, _ int) bool {
		if n.comment != comment {
			return true
		}

		selected = append(selected, n)

		// The whole group is selected already.
		return false
	})

	return Snapshot(selected...)
}

// Status returns the status of the node's last run, or for a group the most
// significant status among its commands' last runs. Commands never run are idle.
func Status(n *Node) command.Status {
	if !n.IsGroup() {
		if run := n.LastRun(); run != nil {
			return run.Status()
		}

		return command.StatusIdle
	}

	leaves := flatten(n.children)
	statuses := make([]command.Status, 0, len(leaves))

	for _, leaf := range leaves {
		statuses = append(statuses, Status(leaf))
	}

	return command.MostSignificant(statuses...)
}
