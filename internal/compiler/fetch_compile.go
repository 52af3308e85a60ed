package compiler

import (
	"fmt"

	"gravix/internal/core"
	"gravix/internal/gravixerr"
	"gravix/internal/ir"
	"gravix/internal/ir/inference"
)

// CompileFetch lowers a parsed fetch projection into a FetchStage, resolving
// attribute and function references against schema and, for variables,
// their inferred type set.
func (c *Compiler) CompileFetch(root map[string]*ir.FetchNode, ann inference.Annotations, schema *core.Manager) (*FetchStage, error) {
	entries, err := c.compileFetchEntries(root, ann, schema)
	if err != nil {
		return nil, err
	}
	return &FetchStage{Root: entries}, nil
}

func (c *Compiler) compileFetchEntries(nodes map[string]*ir.FetchNode, ann inference.Annotations, schema *core.Manager) (map[string]FetchSome, error) {
	out := make(map[string]FetchSome, len(nodes))
	for key, node := range nodes {
		some, err := c.compileFetchNode(node, ann, schema)
		if err != nil {
			return nil, err
		}
		out[key] = some
	}
	return out, nil
}

func (c *Compiler) compileFetchNode(node *ir.FetchNode, ann inference.Annotations, schema *core.Manager) (FetchSome, error) {
	switch {
	case node.Entries != nil:
		entries, err := c.compileFetchEntries(node.Entries, ann, schema)
		if err != nil {
			return nil, err
		}
		return Object{Entries: entries}, nil

	case node.SubPipeline != nil:
		stage := c.CompileMatch(node.SubPipeline, ann)
		sub, err := c.compileFetchEntries(node.SubFetch, ann, schema)
		if err != nil {
			return nil, err
		}
		return ListSubFetch{Pipeline: stage, Fetch: sub}, nil

	case node.Function != "" && node.AsList:
		return ListFunction{Function: node.Function, Args: node.Args}, nil

	case node.Function != "":
		return SingleFunction{Function: node.Function, Args: node.Args}, nil

	case node.AttrLabel != "":
		attrType := schema.GetType(node.AttrLabel)
		if attrType == nil {
			return nil, gravixerr.New(gravixerr.CodeValueTypeMismatch, fmt.Sprintf("fetch: unknown attribute type %q", node.AttrLabel))
		}
		if node.AsList {
			return ListAttributesAsList{Var: node.Var, AttrType: attrType}, nil
		}
		return SingleAttribute{Var: node.Var, AttrType: attrType}, nil

	case node.Var != nil:
		if node.Var.Category.IsListVariant() {
			return ListAttributesFromList{Var: node.Var}, nil
		}
		return SingleVar{Var: node.Var}, nil

	default:
		return nil, gravixerr.New(gravixerr.CodeExecutableCompile, "fetch: empty projection entry")
	}
}
