// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// ErrParseHCLFile is returned when there is an error parsing an HCL command tree.
var ErrParseHCLFile = errors.New("failed to parse HCL command tree")

var (
	hclFileSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "name"},
			{Name: "description"},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "settings"},
			{Type: "group", LabelNames: []string{"name"}},
			{Type: "command"},
		},
	}

	hclGroupSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "directory"},
			{Name: "comment"},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "group", LabelNames: []string{"name"}},
			{Type: "command"},
		},
	}
)

type hclSettings struct {
	HaltOnError *bool   `hcl:"halt_on_error,optional"`
	HistoryDB   *string `hcl:"history_db,optional"`
}

type hclCommand struct {
	Line      string `hcl:"line"`
	Directory string `hcl:"directory,optional"`
	Comment   string `hcl:"comment,optional"`
}

// LoadHCL decodes an HCL command tree. Expressions can read environment variables as env.NAME.
//
//	settings {
//	  halt_on_error = false
//	}
//
//	group "build" {
//	  directory = "${env.HOME}/src/app"
//	  command {
//	    line    = "make all"
//	    comment = "build"
//	  }
//	}
func LoadHCL(_ context.Context, data []byte, filename string) (*Definition, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.Join(ErrParseHCLFile, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(os.Environ()),
		},
	}

	content, diags := file.Body.Content(hclFileSchema)
	if diags.HasErrors() {
		return nil, errors.Join(ErrParseHCLFile, diags)
	}

	def := &Definition{}

	var result error

	if attr, ok := content.Attributes["name"]; ok {
		result = appendDiags(result, gohcl.DecodeExpression(attr.Expr, evalCtx, &def.Name))
	}

	if attr, ok := content.Attributes["description"]; ok {
		result = appendDiags(result, gohcl.DecodeExpression(attr.Expr, evalCtx, &def.Description))
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "settings":
			var s hclSettings

			result = appendDiags(result, gohcl.DecodeBody(block.Body, evalCtx, &s))
			def.Settings.HaltOnError = s.HaltOnError

			if s.HistoryDB != nil {
				def.Settings.HistoryDB = *s.HistoryDB
			}
		default:
			node, err := decodeHCLNode(block, evalCtx)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}

			def.Commands = append(def.Commands, node)
		}
	}

	if result != nil {
		return nil, errors.Join(ErrParseHCLFile, result)
	}

	return def, nil
}

// decodeHCLNode decodes a group or command block, keeping the order of nested blocks.
func decodeHCLNode(block *hcl.Block, evalCtx *hcl.EvalContext) (*NodeDefinition, error) {
	if block.Type == "command" {
		var c hclCommand
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &c); diags.HasErrors() {
			return nil, diags
		}

		return &NodeDefinition{
			Command:   strings.TrimSpace(c.Line),
			Directory: c.Directory,
			Comment:   c.Comment,
		}, nil
	}

	content, diags := block.Body.Content(hclGroupSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	node := &NodeDefinition{Name: block.Labels[0]}

	var result error

	if attr, ok := content.Attributes["directory"]; ok {
		result = appendDiags(result, gohcl.DecodeExpression(attr.Expr, evalCtx, &node.Directory))
	}

	if attr, ok := content.Attributes["comment"]; ok {
		result = appendDiags(result, gohcl.DecodeExpression(attr.Expr, evalCtx, &node.Comment))
	}

	for _, child := range content.Blocks {
		childNode, err := decodeHCLNode(child, evalCtx)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		node.Commands = append(node.Commands, childNode)
	}

	if result != nil {
		return nil, result
	}

	return node, nil
}

func appendDiags(result error, diags hcl.Diagnostics) error {
	if !diags.HasErrors() {
		return result
	}

	return multierror.Append(result, diags.Errs()...)
}

// envObject exposes environment variables to HCL expressions.
func envObject(environ []string) cty.Value {
	vars := make(map[string]cty.Value, len(environ))

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}

		vars[k] = cty.StringVal(v)
	}

	return cty.ObjectVal(vars)
}
