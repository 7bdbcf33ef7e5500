// Package hclgraph loads declarative computation definitions from HCL and
// turns them into buildable computations. A definition declares constants,
// operations over them, and which results to return:
//
//	constant "x" { value = 4 }
//	constant "y" { value = 38 }
//
//	op "sum" {
//	  type   = "Add"
//	  inputs = ["x", "y"]
//	}
//
//	outputs = ["sum"]
package hclgraph

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/gmarzioz/tensorflow/graph"
	"github.com/gmarzioz/tensorflow/internal/ctxlog"
	"github.com/gmarzioz/tensorflow/xla"
)

// Constant is a named literal value.
type Constant struct {
	Name  string
	Value cty.Value
}

// Op is a named operation applied to previously declared nodes.
type Op struct {
	Name   string
	Type   string
	Inputs []string
}

// Definition is a validated computation definition.
type Definition struct {
	Constants []Constant
	Ops       []Op
	Outputs   []string
}

type constantBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

type opBlock struct {
	Name   string   `hcl:"name,label"`
	Type   string   `hcl:"type"`
	Inputs []string `hcl:"inputs,optional"`
}

type fileRoot struct {
	Constants []*constantBlock `hcl:"constant,block"`
	Ops       []*opBlock       `hcl:"op,block"`
	Outputs   []string         `hcl:"outputs,optional"`
}

// opArity is the required input count per supported operation type.
var opArity = map[string]int{
	"Add":      2,
	"Mul":      2,
	"Identity": 1,
	"Print":    1,
}

// Load reads and validates a definition from a file on disk.
func Load(ctx context.Context, path string) (*Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("loading computation definition", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}
	return decode(ctx, file)
}

// Parse validates a definition from in-memory source. filename is used for
// diagnostics only.
func Parse(ctx context.Context, filename string, src []byte) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}
	return decode(ctx, file)
}

func decode(ctx context.Context, file *hcl.File) (*Definition, error) {
	logger := ctxlog.FromContext(ctx)

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode definition: %w", diags)
	}

	def := &Definition{Outputs: root.Outputs}
	declared := make(map[string]struct{})

	for _, c := range root.Constants {
		if _, dup := declared[c.Name]; dup {
			return nil, fmt.Errorf("duplicate node name %q", c.Name)
		}
		val, diags := c.Value.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("constant %q: %w", c.Name, diags)
		}
		declared[c.Name] = struct{}{}
		def.Constants = append(def.Constants, Constant{Name: c.Name, Value: val})
	}

	for _, o := range root.Ops {
		if _, dup := declared[o.Name]; dup {
			return nil, fmt.Errorf("duplicate node name %q", o.Name)
		}
		arity, supported := opArity[o.Type]
		if !supported {
			return nil, fmt.Errorf("op %q: unsupported type %q", o.Name, o.Type)
		}
		if len(o.Inputs) != arity {
			return nil, fmt.Errorf("op %q: type %s requires %d input(s), got %d", o.Name, o.Type, arity, len(o.Inputs))
		}
		for _, in := range o.Inputs {
			if _, known := declared[in]; !known {
				return nil, fmt.Errorf("op %q: unknown input %q", o.Name, in)
			}
		}
		declared[o.Name] = struct{}{}
		def.Ops = append(def.Ops, Op{Name: o.Name, Type: o.Type, Inputs: o.Inputs})
	}

	if len(def.Outputs) == 0 {
		for _, o := range def.Ops {
			def.Outputs = append(def.Outputs, o.Name)
		}
	}
	for _, out := range def.Outputs {
		if _, known := declared[out]; !known {
			return nil, fmt.Errorf("unknown output %q", out)
		}
	}

	logger.Debug("decoded computation definition",
		"constants", len(def.Constants), "ops", len(def.Ops), "outputs", len(def.Outputs))
	return def, nil
}

// Computation returns a computation that builds the definition's nodes in
// the given graph and returns the declared outputs as a flat sequence.
func (d *Definition) Computation(g *graph.Graph) xla.Computation {
	return func(args ...any) (any, error) {
		values := make(map[string]*graph.Value)

		for _, c := range d.Constants {
			v, err := g.Const(c.Value, c.Name)
			if err != nil {
				return nil, fmt.Errorf("constant %q: %w", c.Name, err)
			}
			values[c.Name] = v
		}

		for _, o := range d.Ops {
			ins := make([]*graph.Value, len(o.Inputs))
			for i, name := range o.Inputs {
				ins[i] = values[name]
			}
			var (
				v   *graph.Value
				err error
			)
			switch o.Type {
			case "Add":
				v, err = g.Add(ins[0], ins[1], o.Name)
			case "Mul":
				v, err = g.Mul(ins[0], ins[1], o.Name)
			case "Identity":
				v, err = g.Identity(ins[0], o.Name)
			case "Print":
				v, err = g.Print(ins[0], o.Name)
			default:
				err = fmt.Errorf("unsupported op type %q", o.Type)
			}
			if err != nil {
				return nil, fmt.Errorf("op %q: %w", o.Name, err)
			}
			values[o.Name] = v
		}

		outs := make([]any, len(d.Outputs))
		for i, name := range d.Outputs {
			outs[i] = values[name]
		}
		return outs, nil
	}
}
