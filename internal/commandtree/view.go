// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package commandtree

// View is a read-only description of a node, used for listings.
type View struct {
	Path             string `json:"path"`
	Name             string `json:"name"`
	Group            bool   `json:"group"`
	Directory        string `json:"directory,omitempty"`
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	Comment          string `json:"comment,omitempty"`
	Children         []View `json:"children,omitempty"`
}

// Views describes the whole tree.
func (t *Tree) Views() []View {
	return views(t.roots)
}

func views(nodes []*Node) []View {
	out := make([]View, 0, len(nodes))

	for _, n := range nodes {
		v := View{
			Path:      n.Path(),
			Name:      n.Name(),
			Group:     n.IsGroup(),
			Directory: n.directory,
			Comment:   n.comment,
		}

		if n.IsGroup() {
			v.Children = views(n.children)
		} else {
			v.WorkingDirectory = n.command.WorkingDirectory()
		}

		out = append(out, v)
	}

	return out
}
