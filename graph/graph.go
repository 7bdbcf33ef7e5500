// Package graph holds the in-memory dataflow graph that compilation passes
// rewrite: operations, the values flowing between them, control-input
// edges, and the ambient construction state (control contexts and
// control-dependency scopes) that every newly created operation is routed
// through.
//
// Graph construction is single-threaded by design. A Graph must not be
// shared between goroutines while operations are being added.
package graph

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ControlContext intercepts operations as they are added to the graph.
// Contexts nest: the graph keeps a stack of them, and an operation created
// while the stack is non-empty is handed to the innermost context, which
// may rewrite its edges before construction completes.
type ControlContext interface {
	// AddOp is called for every operation created while the context is
	// the innermost active context.
	AddOp(op *Operation) error
	// AddInnerOp notifies the context of an operation created inside a
	// context nested within it.
	AddInnerOp(op *Operation) error
	// AddValue resolves a value reference against the context, returning
	// the value the context wants consumers inside it to use.
	AddValue(v *Value) (*Value, error)
	// RecordSeenValues marks value names as observed by the context.
	RecordSeenValues(names ...string)
	// Outer returns the immediately enclosing context, or nil.
	Outer() ControlContext
}

// ctrlFrame is one control-dependency scope. A clearing frame acts as a
// barrier: frames below it do not contribute ambient dependencies.
type ctrlFrame struct {
	clear bool
	deps  []*Operation
}

// Graph is a registry of operations under construction.
type Graph struct {
	ops         []*Operation
	byName      map[string]*Operation
	names       map[string]int
	ctxStack    []ControlContext
	ctrlFrames  []*ctrlFrame
	unfeedable  map[*Operation]struct{}
	unfetchable map[*Operation]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		byName:      make(map[string]*Operation),
		names:       make(map[string]int),
		unfeedable:  make(map[*Operation]struct{}),
		unfetchable: make(map[*Operation]struct{}),
	}
}

// UniqueName reserves and returns a name that is unique within the graph,
// derived from the given prefix. The prefix itself is returned when still
// free; otherwise a "_N" suffix is appended.
func (g *Graph) UniqueName(prefix string) string {
	if prefix == "" {
		prefix = "op"
	}
	n, taken := g.names[prefix]
	if !taken {
		g.names[prefix] = 1
		return prefix
	}
	for {
		candidate := fmt.Sprintf("%s_%d", prefix, n)
		n++
		if _, exists := g.names[candidate]; !exists {
			g.names[prefix] = n
			g.names[candidate] = 1
			return candidate
		}
	}
}

// OpSpec describes an operation to add to the graph.
type OpSpec struct {
	// Type is the operation type, e.g. "Identity". Required.
	Type string
	// Name is the requested operation name. Defaults to Type. The final
	// name is uniquified within the graph.
	Name string
	// Inputs are the data inputs, in order.
	Inputs []*Value
	// OutputTypes declares one output value per entry.
	OutputTypes []DType
	// ControlInputs are explicit control-input edges, merged with the
	// ambient control-dependency scope.
	ControlInputs []*Operation
	// Attrs are initial string attributes.
	Attrs map[string]string
	// Device is an optional device placement.
	Device string
	// Literal is the constant payload for Const operations.
	Literal cty.Value
}

// AddOperation creates an operation from spec, attaches ambient control
// dependencies, and routes it through the innermost active control context.
func (g *Graph) AddOperation(spec OpSpec) (*Operation, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("operation type must not be empty")
	}
	for i, in := range spec.Inputs {
		if in == nil {
			return nil, fmt.Errorf("nil input at index %d for %s operation", i, spec.Type)
		}
		if in.op.graph != g {
			return nil, fmt.Errorf("input %q belongs to a different graph", in.Name())
		}
	}

	name := spec.Name
	if name == "" {
		name = spec.Type
	}
	name = g.UniqueName(name)

	op := &Operation{
		graph:          g,
		opType:         spec.Type,
		name:           name,
		inputs:         append([]*Value(nil), spec.Inputs...),
		device:         spec.Device,
		literal:        spec.Literal,
		controlContext: g.CurrentControlContext(),
	}
	for k, v := range spec.Attrs {
		op.SetAttr(k, v)
	}
	for i, dt := range spec.OutputTypes {
		op.outputs = append(op.outputs, &Value{op: op, index: i, dtype: dt})
	}
	op.AddControlInputs(spec.ControlInputs)
	op.AddControlInputs(g.currentControlDependencies())

	g.ops = append(g.ops, op)
	g.byName[name] = op

	if cc := g.CurrentControlContext(); cc != nil {
		if err := cc.AddOp(op); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// Operations returns all operations in creation order.
func (g *Graph) Operations() []*Operation {
	out := make([]*Operation, len(g.ops))
	copy(out, g.ops)
	return out
}

// Operation looks up an operation by name.
func (g *Graph) Operation(name string) (*Operation, bool) {
	op, ok := g.byName[name]
	return op, ok
}

// PushControlContext makes cc the innermost active control context.
func (g *Graph) PushControlContext(cc ControlContext) {
	g.ctxStack = append(g.ctxStack, cc)
}

// PopControlContext removes cc from the top of the context stack. It is an
// error if cc is not the innermost context, which indicates mismatched
// enter/exit nesting.
func (g *Graph) PopControlContext(cc ControlContext) error {
	if len(g.ctxStack) == 0 {
		return fmt.Errorf("control context stack is empty")
	}
	if top := g.ctxStack[len(g.ctxStack)-1]; top != cc {
		return fmt.Errorf("control context exited out of order")
	}
	g.ctxStack = g.ctxStack[:len(g.ctxStack)-1]
	return nil
}

// CurrentControlContext returns the innermost active control context, or nil.
func (g *Graph) CurrentControlContext() ControlContext {
	if len(g.ctxStack) == 0 {
		return nil
	}
	return g.ctxStack[len(g.ctxStack)-1]
}

// PushControlDependencies opens a control-dependency scope. Operations
// created while the scope is open gain control-input edges on deps, in
// addition to any enclosing scopes. A nil deps clears all ambient
// dependencies for the duration of the scope. The returned function closes
// the scope and must be called in LIFO order.
func (g *Graph) PushControlDependencies(deps []*Operation) (restore func()) {
	frame := &ctrlFrame{clear: deps == nil, deps: deps}
	g.ctrlFrames = append(g.ctrlFrames, frame)
	return func() {
		if len(g.ctrlFrames) == 0 || g.ctrlFrames[len(g.ctrlFrames)-1] != frame {
			panic("graph: control-dependency scopes closed out of order")
		}
		g.ctrlFrames = g.ctrlFrames[:len(g.ctrlFrames)-1]
	}
}

// currentControlDependencies collects the ambient control dependencies,
// walking scopes inside-out until a clearing frame is hit.
func (g *Graph) currentControlDependencies() []*Operation {
	var out []*Operation
	for i := len(g.ctrlFrames) - 1; i >= 0; i-- {
		frame := g.ctrlFrames[i]
		if frame.clear {
			break
		}
		out = append(out, frame.deps...)
	}
	return out
}

// PreventFeeding marks an operation as not externally feedable.
func (g *Graph) PreventFeeding(op *Operation) {
	g.unfeedable[op] = struct{}{}
}

// PreventFetching marks an operation as not externally fetchable.
func (g *Graph) PreventFetching(op *Operation) {
	g.unfetchable[op] = struct{}{}
}

// IsFeedable reports whether the operation may be fed externally.
func (g *Graph) IsFeedable(op *Operation) bool {
	_, blocked := g.unfeedable[op]
	return !blocked
}

// IsFetchable reports whether the operation may be fetched externally.
func (g *Graph) IsFetchable(op *Operation) bool {
	_, blocked := g.unfetchable[op]
	return !blocked
}
