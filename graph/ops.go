package graph

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// NoOp creates an operation with no inputs and no outputs, useful as an
// anchor for control-input edges.
func (g *Graph) NoOp(name string) (*Operation, error) {
	return g.AddOperation(OpSpec{Type: "NoOp", Name: name})
}

// Group creates a NoOp that control-depends on every given operation, so
// running the group runs all of them.
func (g *Graph) Group(name string, deps ...*Operation) (*Operation, error) {
	return g.AddOperation(OpSpec{Type: "NoOp", Name: name, ControlInputs: deps})
}

// Identity creates a pass-through of v: a data operation whose single
// output forwards its input unchanged.
func (g *Graph) Identity(v *Value, name string) (*Value, error) {
	op, err := g.AddOperation(OpSpec{
		Type:        "Identity",
		Name:        name,
		Inputs:      []*Value{v},
		OutputTypes: []DType{v.DType()},
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}

// Const creates a constant operation holding the given literal.
func (g *Graph) Const(val cty.Value, name string) (*Value, error) {
	if val == cty.NilVal {
		return nil, fmt.Errorf("constant literal must not be nil")
	}
	op, err := g.AddOperation(OpSpec{
		Type:        "Const",
		Name:        name,
		OutputTypes: []DType{Of(val.Type())},
		Literal:     val,
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}

// Placeholder creates an unbound external input of the given type.
func (g *Graph) Placeholder(t cty.Type, name string) (*Value, error) {
	op, err := g.AddOperation(OpSpec{
		Type:        "Placeholder",
		Name:        name,
		OutputTypes: []DType{Of(t)},
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}

// Add creates an elementwise addition of a and b. The output takes the
// type of the first operand.
func (g *Graph) Add(a, b *Value, name string) (*Value, error) {
	return g.binaryOp("Add", a, b, name)
}

// Mul creates an elementwise multiplication of a and b.
func (g *Graph) Mul(a, b *Value, name string) (*Value, error) {
	return g.binaryOp("Mul", a, b, name)
}

func (g *Graph) binaryOp(opType string, a, b *Value, name string) (*Value, error) {
	op, err := g.AddOperation(OpSpec{
		Type:        opType,
		Name:        name,
		Inputs:      []*Value{a, b},
		OutputTypes: []DType{a.DType()},
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}

// Print creates a debug operation that forwards its input while logging it
// at execution time. Compiled clusters tolerate but report it.
func (g *Graph) Print(v *Value, name string) (*Value, error) {
	op, err := g.AddOperation(OpSpec{
		Type:        "Print",
		Name:        name,
		Inputs:      []*Value{v},
		OutputTypes: []DType{v.DType()},
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}

// RefVariable creates a variable in the legacy reference representation.
// Its output is a mutable reference and is rejected inside compiled
// clusters.
func (g *Graph) RefVariable(name string, t cty.Type) (*Value, error) {
	op, err := g.AddOperation(OpSpec{
		Type:        "VariableV2",
		Name:        name,
		OutputTypes: []DType{RefOf(t)},
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}

// VarHandle creates a resource handle for a variable of the given element
// type.
func (g *Graph) VarHandle(name string, t cty.Type) (*Value, error) {
	op, err := g.AddOperation(OpSpec{
		Type:        "VarHandleOp",
		Name:        name,
		OutputTypes: []DType{Of(Resource)},
		Attrs:       map[string]string{"dtype": Of(t).String()},
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}

// ReadVariable reads the current value behind a resource handle. The
// result is an ordinary immutable value of the element type.
func (g *Graph) ReadVariable(handle *Value, t cty.Type, name string) (*Value, error) {
	if !handle.DType().Type.Equals(Resource) {
		return nil, fmt.Errorf("ReadVariable requires a resource handle, got %s", handle.DType())
	}
	op, err := g.AddOperation(OpSpec{
		Type:        "ReadVariableOp",
		Name:        name,
		Inputs:      []*Value{handle},
		OutputTypes: []DType{Of(t)},
	})
	if err != nil {
		return nil, err
	}
	return op.Output(0), nil
}
