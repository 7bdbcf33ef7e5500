package xla

import (
	"fmt"

	"github.com/gmarzioz/tensorflow/graph"
	"github.com/gmarzioz/tensorflow/internal/nest"
)

// isFlat classifies a computation result using one level of structural
// inspection: nil, a single non-structure value, and a []any whose
// elements are not themselves sequences or maps are flat; everything else
// is nested. The inspection is deliberately shallow; deeper heuristics
// would change behavior for ambiguous structures.
func isFlat(outputs any) bool {
	switch o := outputs.(type) {
	case []any:
		for _, e := range o {
			if nest.IsSequence(e) {
				return false
			}
		}
		return true
	case map[string]any:
		return false
	default:
		return true
	}
}

// postprocessFlatOutputs validates a flat result and separates it into
// value outputs and side-effecting operations. A nil result becomes an
// empty sequence and a single bare value a one-element sequence. A NoOp is
// appended so the result always contains at least one operation able to
// trigger the cluster. Values must precede operations in the original
// ordering. Each value output is rewrapped in an identity carrying its
// original device placement.
func postprocessFlatOutputs(g *graph.Graph, outputs any) ([]*graph.Value, []*graph.Operation, error) {
	var seq []any
	switch o := outputs.(type) {
	case nil:
	case []any:
		seq = append(seq, o...)
	default:
		seq = []any{o}
	}

	nop, err := g.NoOp("")
	if err != nil {
		return nil, nil, err
	}
	seq = append(seq, nop)

	converted := make([]any, 0, len(seq))
	for _, o := range seq {
		if op, ok := o.(*graph.Operation); ok {
			converted = append(converted, op)
			continue
		}
		v, err := g.ConvertToValue(o)
		if err != nil {
			return nil, nil, fmt.Errorf("computation results must all either be operations or convertible to values: %w", err)
		}
		converted = append(converted, v)
	}

	var outputOperations []*graph.Operation
	var outputValues []*graph.Value
	sawOperation := false
	for _, o := range converted {
		if op, ok := o.(*graph.Operation); ok {
			sawOperation = true
			outputOperations = append(outputOperations, op)
			continue
		}
		if sawOperation {
			return nil, nil, fmt.Errorf("computation must return zero or more values followed by zero or more operations")
		}
		outputValues = append(outputValues, o.(*graph.Value))
	}

	wrapped := make([]*graph.Value, len(outputValues))
	for i, t := range outputValues {
		v, err := identityOn(g, t, t.Device())
		if err != nil {
			return nil, nil, err
		}
		wrapped[i] = v
	}
	return wrapped, outputOperations, nil
}

// postprocessNonFlatOutputs validates a nested result. Operations are not
// permitted anywhere in a nested structure; every leaf must convert to a
// value. Each value is rewrapped in an identity carrying its original
// device placement so even pass-through results are touched inside the
// cluster.
func postprocessNonFlatOutputs(g *graph.Graph, outputs any) ([]*graph.Value, []*graph.Operation, error) {
	flat := nest.Flatten(outputs)
	outputValues := make([]*graph.Value, 0, len(flat))
	for _, o := range flat {
		if op, ok := o.(*graph.Operation); ok {
			return nil, nil, fmt.Errorf("operations are not supported as results in a nested structure; set them as control dependencies of returned values instead (operation: %q)", op.Name())
		}
		v, err := g.ConvertToValue(o)
		if err != nil {
			return nil, nil, fmt.Errorf("computation results must all either be operations or convertible to values: %w", err)
		}
		wrapped, err := identityOn(g, v, v.Device())
		if err != nil {
			return nil, nil, err
		}
		outputValues = append(outputValues, wrapped)
	}
	return outputValues, nil, nil
}

// identityOn wraps v in a pass-through identity placed on device.
func identityOn(g *graph.Graph, v *graph.Value, device string) (*graph.Value, error) {
	op, err := g.AddOperation(graph.OpSpec{
		Type:        "Identity",
		Inputs:      []*graph.Value{v},
		OutputTypes: []graph.DType{v.DType()},
		Device:      device,
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}
