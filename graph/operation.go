package graph

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Operation is a single node in the graph. It consumes zero or more input
// values, produces zero or more output values, and may carry control-input
// edges that order it after other operations without a data dependency.
type Operation struct {
	graph          *Graph
	opType         string
	name           string
	inputs         []*Value
	outputs        []*Value
	controlInputs  []*Operation
	attrs          map[string]string
	device         string
	literal        cty.Value
	controlContext ControlContext
}

// Type returns the operation type, e.g. "Identity" or "NoOp".
func (o *Operation) Type() string { return o.opType }

// Name returns the operation's unique name within its graph.
func (o *Operation) Name() string { return o.name }

// Graph returns the graph that owns this operation.
func (o *Operation) Graph() *Graph { return o.graph }

// Device returns the device placement recorded at creation, or "".
func (o *Operation) Device() string { return o.device }

// Literal returns the constant payload for Const operations, or cty.NilVal.
func (o *Operation) Literal() cty.Value { return o.literal }

// ControlContext returns the control context that was active when the
// operation was created, or nil.
func (o *Operation) ControlContext() ControlContext { return o.controlContext }

// NumInputs returns the number of data inputs.
func (o *Operation) NumInputs() int { return len(o.inputs) }

// Inputs returns a copy of the operation's data inputs.
func (o *Operation) Inputs() []*Value {
	out := make([]*Value, len(o.inputs))
	copy(out, o.inputs)
	return out
}

// Input returns the data input at the given index.
func (o *Operation) Input(index int) *Value { return o.inputs[index] }

// UpdateInput replaces the data input at the given index.
func (o *Operation) UpdateInput(index int, v *Value) error {
	if index < 0 || index >= len(o.inputs) {
		return fmt.Errorf("input index %d out of range for operation %q (%d inputs)", index, o.name, len(o.inputs))
	}
	if v == nil {
		return fmt.Errorf("cannot set nil input on operation %q", o.name)
	}
	o.inputs[index] = v
	return nil
}

// Outputs returns a copy of the operation's output values.
func (o *Operation) Outputs() []*Value {
	out := make([]*Value, len(o.outputs))
	copy(out, o.outputs)
	return out
}

// NumOutputs returns the number of output values.
func (o *Operation) NumOutputs() int { return len(o.outputs) }

// Output returns the output value at the given index.
func (o *Operation) Output(index int) *Value { return o.outputs[index] }

// ControlInputs returns a copy of the operation's control-input edges.
func (o *Operation) ControlInputs() []*Operation {
	out := make([]*Operation, len(o.controlInputs))
	copy(out, o.controlInputs)
	return out
}

// AddControlInput appends a control-input edge unless it is already present.
func (o *Operation) AddControlInput(dep *Operation) {
	for _, existing := range o.controlInputs {
		if existing == dep {
			return
		}
	}
	o.controlInputs = append(o.controlInputs, dep)
}

// AddControlInputs appends each given control-input edge.
func (o *Operation) AddControlInputs(deps []*Operation) {
	for _, dep := range deps {
		o.AddControlInput(dep)
	}
}

// RemoveAllControlInputs strips every control-input edge.
func (o *Operation) RemoveAllControlInputs() {
	o.controlInputs = nil
}

// Attr returns the string attribute stored under key.
func (o *Operation) Attr(key string) (string, bool) {
	v, ok := o.attrs[key]
	return v, ok
}

// SetAttr stores a string attribute under key, replacing any prior value.
func (o *Operation) SetAttr(key, value string) {
	if o.attrs == nil {
		o.attrs = make(map[string]string)
	}
	o.attrs[key] = value
}

// Value is one output of an operation. Values are created by the owning
// graph and compared by pointer identity.
type Value struct {
	op    *Operation
	index int
	dtype DType
}

// Op returns the operation that produces this value.
func (v *Value) Op() *Operation { return v.op }

// Index returns the output slot of this value on its producing operation.
func (v *Value) Index() int { return v.index }

// DType returns the value's type descriptor.
func (v *Value) DType() DType { return v.dtype }

// Device returns the device placement of the producing operation.
func (v *Value) Device() string { return v.op.device }

// Name returns the canonical "op:index" name of this value.
func (v *Value) Name() string {
	return fmt.Sprintf("%s:%d", v.op.name, v.index)
}
