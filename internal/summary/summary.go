// Package summary creates instrumentation operations and exposes the
// toggle that suppresses them inside compiled clusters.
package summary

import (
	"github.com/gmarzioz/tensorflow/graph"
	"github.com/zclconf/go-cty/cty"
)

var skip bool

// Skipped reports whether summary creation is currently suppressed.
func Skipped() bool {
	return skip
}

// Disable suppresses summary creation until the returned function is
// called. The restore function must be called exactly once.
func Disable() (restore func()) {
	prev := skip
	skip = true
	return func() {
		skip = prev
	}
}

// Scalar creates a ScalarSummary operation for the given value, or returns
// a nil operation when summaries are suppressed.
func Scalar(g *graph.Graph, tag string, value *graph.Value) (*graph.Operation, error) {
	if skip {
		return nil, nil
	}
	return g.AddOperation(graph.OpSpec{
		Type:        "ScalarSummary",
		Name:        tag,
		Inputs:      []*graph.Value{value},
		OutputTypes: []graph.DType{graph.Of(cty.String)},
	})
}
