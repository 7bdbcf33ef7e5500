package graph

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ConvertToValue coerces a host value into a value in this graph. Existing
// graph values pass through unchanged; cty values and any Go value with an
// implied cty type become Const operations.
func (g *Graph) ConvertToValue(v any) (*Value, error) {
	switch x := v.(type) {
	case *Value:
		if x.op.graph != g {
			return nil, fmt.Errorf("value %q belongs to a different graph", x.Name())
		}
		return x, nil
	case cty.Value:
		return g.Const(x, "")
	case nil:
		return nil, fmt.Errorf("cannot convert nil to a graph value")
	default:
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return nil, fmt.Errorf("unable to infer cty type for %T: %w", v, err)
		}
		cv, err := gocty.ToCtyValue(v, ty)
		if err != nil {
			return nil, fmt.Errorf("unable to convert %T to %s: %w", v, ty.FriendlyName(), err)
		}
		return g.Const(cv, "")
	}
}
