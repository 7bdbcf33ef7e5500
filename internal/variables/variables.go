// Package variables creates graph variables honoring the ambient
// variable-scope settings.
package variables

import (
	"github.com/gmarzioz/tensorflow/graph"
	"github.com/gmarzioz/tensorflow/internal/vscope"
	"github.com/zclconf/go-cty/cty"
)

// New creates a variable named name with the type of initial and returns a
// readable value for it. When the ambient scope selects the resource
// representation, the variable is backed by a resource handle and the
// returned value is an immutable read; otherwise a legacy reference
// variable is created and its mutable reference output returned.
func New(g *graph.Graph, name string, initial cty.Value) (*graph.Value, error) {
	if vscope.Current().UseResource() {
		handle, err := g.VarHandle(name, initial.Type())
		if err != nil {
			return nil, err
		}
		return g.ReadVariable(handle, initial.Type(), name+"/Read")
	}
	return g.RefVariable(name, initial.Type())
}
