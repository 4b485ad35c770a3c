// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrInvalidDefinition is returned when a command tree fails validation.
	ErrInvalidDefinition = errors.New("invalid command tree definition")
	// ErrNodeBothGroupAndCommand is returned when a node has a command line and children.
	ErrNodeBothGroupAndCommand = errors.New("node has both a command line and child nodes")
	// ErrGroupWithoutName is returned when a group node has no name.
	ErrGroupWithoutName = errors.New("group has no name")
	// ErrNameContainsSlash is returned when a group name contains the path separator.
	ErrNameContainsSlash = errors.New("group name must not contain '/'")
	// ErrDuplicateGroupName is returned when siblings share a group name.
	ErrDuplicateGroupName = errors.New("duplicate group name")
)

// Definition is a command tree file.
type Definition struct {
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Settings    Settings          `yaml:"settings"`
	Commands    []*NodeDefinition `yaml:"commands"`
}

// NodeDefinition is either a group, which has a name and children, or a command,
// which has a command line.
type NodeDefinition struct {
	// Name identifies a group. Commands are identified by their command line.
	Name string `yaml:"name,omitempty"`
	// Directory is where a command runs. On a group it is inherited by the commands below.
	Directory string `yaml:"directory,omitempty"`
	// Comment is used to select commands to run.
	Comment string `yaml:"comment,omitempty"`
	// Command is the command line: the executable and its arguments, separated by whitespace.
	Command string `yaml:"command,omitempty"`
	// Commands are the children of a group.
	Commands []*NodeDefinition `yaml:"commands,omitempty"`
}

// IsCommand reports whether the node is a command rather than a group.
func (n *NodeDefinition) IsCommand() bool {
	return n.Command != ""
}

// Validate checks every node, collecting all problems.
func (d *Definition) Validate() error {
	var result error

	validateNodes(d.Commands, "", &result)

	if result != nil {
		return errors.Join(ErrInvalidDefinition, result)
	}

	return nil
}

func validateNodes(nodes []*NodeDefinition, parent string, result *error) {
	seen := make(map[string]bool)

	for i, n := range nodes {
		where := fmt.Sprintf("%s[%d]", parent, i)

		if n == nil {
			continue
		}

		if n.IsCommand() {
			if len(n.Commands) > 0 {
				*result = multierror.Append(*result, fmt.Errorf("%s %q: %w", where, n.Command, ErrNodeBothGroupAndCommand))
			}

			continue
		}

		switch {
		case n.Name == "":
			*result = multierror.Append(*result, fmt.Errorf("%s: %w", where, ErrGroupWithoutName))
		case strings.Contains(n.Name, "/"):
			*result = multierror.Append(*result, fmt.Errorf("%s %q: %w", where, n.Name, ErrNameContainsSlash))
		case seen[n.Name]:
			*result = multierror.Append(*result, fmt.Errorf("%s %q: %w", where, n.Name, ErrDuplicateGroupName))
		}

		seen[n.Name] = true

		validateNodes(n.Commands, where+"/"+n.Name, result)
	}
}
