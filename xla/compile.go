// Package xla delimits a subgraph as a single compiled cluster: it tags
// every operation built inside the region, rewrites data and control edges
// crossing the boundary, and normalizes the region's inputs and outputs.
package xla

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gmarzioz/tensorflow/graph"
	"github.com/gmarzioz/tensorflow/internal/ctxlog"
	"github.com/gmarzioz/tensorflow/internal/nest"
	"github.com/gmarzioz/tensorflow/internal/summary"
	"github.com/gmarzioz/tensorflow/internal/vscope"
)

// Computation builds the subgraph to compile. It receives one argument per
// top-level input; arguments mirror the structure of the corresponding
// inputs, with every leaf replaced by a *graph.Value.
type Computation func(args ...any) (any, error)

// Compile builds computation inside a compiled cluster and returns the
// same logical result as calling it directly, with these exceptions:
//
//  1. A computation returning nothing yields a grouping no-op.
//  2. A computation returning operations only yields a no-op that
//     control-depends on all of them.
//  3. A single bare value yields a one-element sequence.
//
// inputs must be nil or a slice; each element may be a nested structure of
// []any and map[string]any whose leaves are graph values or host values
// convertible to them. Flat results are returned as []*graph.Value (or a
// *graph.Operation for the no-output case); nested results keep their
// structure with each leaf replaced by its output value.
func Compile(ctx context.Context, g *graph.Graph, computation Computation, inputs any) (any, error) {
	logger := ctxlog.FromContext(ctx)

	inputSeq, err := normalizeInputs(inputs)
	if err != nil {
		return nil, err
	}

	flatInputs := nest.Flatten(any(inputSeq))
	inputValues := make([]*graph.Value, len(flatInputs))
	for i, in := range flatInputs {
		v, err := g.ConvertToValue(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputValues[i] = v
	}

	clusterName := g.UniqueName("cluster")
	pivot, err := g.NoOp(clusterName + "/pivot")
	if err != nil {
		return nil, err
	}

	cluster := NewContext(g, clusterName, pivot, logger)

	var (
		outputValues []*graph.Value
		controlDeps  []*graph.Operation
		rawOutputs   any
		outputsFlat  bool
	)

	err = func() (err error) {
		cluster.Enter()
		defer func() {
			cluster.ReportUnsupportedOperations()
			if exitErr := cluster.Exit(); exitErr != nil && err == nil {
				err = exitErr
			}
		}()

		// Wrap inputs in identities so even unused ones are consumed by
		// the cluster.
		wrapped := make([]any, len(inputValues))
		for i, v := range inputValues {
			id, wErr := g.Identity(v, fmt.Sprintf("input_%d", i))
			if wErr != nil {
				return wErr
			}
			wrapped[i] = id
		}

		packed, pErr := nest.Pack(any(inputSeq), wrapped)
		if pErr != nil {
			return pErr
		}
		args := packed.([]any)

		// Only resource variables are legal inside a compiled cluster.
		vs := vscope.Current()
		savedUseResource := vs.UseResource()
		vs.SetUseResource(true)
		defer vs.SetUseResource(savedUseResource)

		outputs, cErr := func() (any, error) {
			restore := summary.Disable()
			defer restore()
			return computation(args...)
		}()
		if cErr != nil {
			return cErr
		}
		rawOutputs = outputs

		outputsFlat = isFlat(outputs)
		if outputsFlat {
			outputValues, controlDeps, err = postprocessFlatOutputs(g, outputs)
		} else {
			outputValues, controlDeps, err = postprocessNonFlatOutputs(g, outputs)
		}
		if err != nil {
			return err
		}

		cluster.ExitResult(outputValues)
		return nil
	}()
	if err != nil {
		return nil, err
	}

	// With no output values there would be nothing to evaluate that
	// triggers the cluster, so return a no-op grouping the side effects.
	if len(outputValues) == 0 {
		return g.Group("output_0", controlDeps...)
	}

	exits := make([]*graph.Value, len(outputValues))
	for i, o := range outputValues {
		v, err := clusterOutput(g, o, fmt.Sprintf("output%d", i))
		if err != nil {
			return nil, err
		}
		exits[i] = v
	}

	// Wrap the exits in identities that carry the side-effecting
	// operations as control dependencies, so evaluating any output
	// triggers all of them.
	restore := g.PushControlDependencies(controlDeps)
	finalOutputs := make([]*graph.Value, len(exits))
	for i, o := range exits {
		v, err := g.Identity(o, fmt.Sprintf("output_%d", i))
		if err != nil {
			restore()
			return nil, err
		}
		finalOutputs[i] = v
	}
	restore()

	if !outputsFlat {
		leaves := make([]any, len(finalOutputs))
		for i, v := range finalOutputs {
			leaves[i] = v
		}
		return nest.Pack(rawOutputs, leaves)
	}
	return finalOutputs, nil
}

// normalizeInputs validates that inputs is nil or slice-shaped and
// normalizes it to []any.
func normalizeInputs(inputs any) ([]any, error) {
	if inputs == nil {
		return nil, nil
	}
	if seq, ok := inputs.([]any); ok {
		return seq, nil
	}
	rv := reflect.ValueOf(inputs)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("inputs must be a list, got %T", inputs)
	}
	seq := make([]any, rv.Len())
	for i := range seq {
		seq[i] = rv.Index(i).Interface()
	}
	return seq, nil
}

// clusterOutput marks a value as leaving the compiled cluster.
func clusterOutput(g *graph.Graph, v *graph.Value, name string) (*graph.Value, error) {
	op, err := g.AddOperation(graph.OpSpec{
		Type:        "XlaClusterOutput",
		Name:        name,
		Inputs:      []*graph.Value{v},
		OutputTypes: []graph.DType{v.DType()},
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}
