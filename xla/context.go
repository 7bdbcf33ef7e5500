package xla

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gmarzioz/tensorflow/graph"
)

// CompileAttr is the attribute marking an operation as belonging to a
// compiled cluster. Its value is the cluster name.
const CompileAttr = "_xla_compile_id"

// maxWarningLines caps how many tolerated-but-unsupported operations are
// listed in the post-exit warning.
const maxWarningLines = 5

// blacklistedOps have no valid meaning inside a compiled cluster and
// indicate an error in the user's graph. They are logged here; execution
// fails later if they survive into the cluster.
var blacklistedOps = map[string]struct{}{
	"Placeholder": {},
}

// unsupportedOps are tolerated during construction but reported after the
// cluster is closed, since compilation cannot honor them.
var unsupportedOps = map[string]struct{}{
	"AudioSummary":     {},
	"AudioSummaryV2":   {},
	"HistogramSummary": {},
	"ImageSummary":     {},
	"MergeSummary":     {},
	"Print":            {},
	"ScalarSummary":    {},
	"TensorSummary":    {},
	"TensorSummaryV2":  {},
}

// Context marks every operation created while it is active as part of one
// compiled cluster and rewrites the cluster's boundary edges: external
// control inputs become pass-through data dependencies, external data
// inputs are threaded through enclosing contexts, and parentless
// operations are anchored on the cluster pivot.
type Context struct {
	graph          *graph.Graph
	name           string
	pivot          *graph.Operation
	values         map[string]struct{}
	externalValues map[string]*graph.Value
	unsupported    []*graph.Operation
	outer          graph.ControlContext
	logger         *slog.Logger
}

// NewContext builds a cluster context. name is the unique cluster tag;
// pivot anchors operations that have no input edges, keeping them ordered
// relative to any enclosing control-flow region. The enclosing context, if
// any, is captured at construction time.
func NewContext(g *graph.Graph, name string, pivot *graph.Operation, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		graph:          g,
		name:           name,
		pivot:          pivot,
		values:         make(map[string]struct{}),
		externalValues: make(map[string]*graph.Value),
		outer:          g.CurrentControlContext(),
		logger:         logger,
	}
}

// Name returns the cluster tag.
func (c *Context) Name() string { return c.name }

// Pivot returns the cluster's anchor operation.
func (c *Context) Pivot() *graph.Operation { return c.pivot }

// Outer returns the immediately enclosing control context, or nil.
func (c *Context) Outer() graph.ControlContext { return c.outer }

// Enter makes the context the innermost active context, so all
// subsequently created operations route through AddOp.
func (c *Context) Enter() {
	c.graph.PushControlContext(c)
}

// Exit deactivates the context. Exits must mirror enters in strict LIFO
// order.
func (c *Context) Exit() error {
	return c.graph.PopControlContext(c)
}

// RecordSeenValues marks value names as observed by this context.
func (c *Context) RecordSeenValues(names ...string) {
	for _, n := range names {
		c.values[n] = struct{}{}
	}
}

// AddOp tags op with the cluster attribute and rewires its boundary
// edges. It is invoked by the graph for every operation created while the
// context is active.
func (c *Context) AddOp(op *graph.Operation) error {
	if _, bad := blacklistedOps[op.Type()]; bad {
		c.logger.Error("operation type is not supported in a compiled cluster; execution will fail if it is used",
			"type", op.Type(), "name", op.Name())
	}

	if _, unsupported := unsupportedOps[op.Type()]; unsupported {
		c.unsupported = append(c.unsupported, op)
	}

	for _, in := range op.Inputs() {
		if in.DType().IsRef() {
			return fmt.Errorf("non-resource variables are not supported inside compiled computations (operator name: %s)", op.Name())
		}
	}

	if _, tagged := op.Attr(CompileAttr); tagged {
		return fmt.Errorf("compiled computations cannot be nested (operator name: %s)", op.Name())
	}

	op.SetAttr(CompileAttr, c.name)

	c.graph.PreventFeeding(op)
	c.graph.PreventFetching(op)

	// Control edges from enclosing control-flow regions can trigger
	// mismatched execution-frame errors, so they are stripped here and
	// reattached below as data-visible pass-throughs.
	internalControlInputs, externalControlInputs := c.removeExternalControlEdges(op)

	if op.NumInputs() == 0 {
		if len(internalControlInputs) == 0 {
			op.AddControlInput(c.pivot)
		}
	} else {
		for index, in := range op.Inputs() {
			real, err := c.AddValue(in)
			if err != nil {
				return err
			}
			if real != in {
				if err := op.UpdateInput(index, real); err != nil {
					return err
				}
			}
		}
	}

	if len(externalControlInputs) > 0 {
		converted, err := c.convertExternalControlInputs(externalControlInputs)
		if err != nil {
			return err
		}
		op.AddControlInputs(converted)
	}

	outputNames := make([]string, 0, op.NumOutputs())
	for _, out := range op.Outputs() {
		outputNames = append(outputNames, out.Name())
	}
	for cc := graph.ControlContext(c); cc != nil; cc = cc.Outer() {
		cc.RecordSeenValues(outputNames...)
	}

	if c.outer != nil {
		return c.outer.AddInnerOp(op)
	}
	return nil
}

// removeExternalControlEdges partitions op's control inputs into those
// whose owning context chain includes this context and all others, strips
// everything, and restores only the internal ones.
func (c *Context) removeExternalControlEdges(op *graph.Operation) (internal, external []*graph.Operation) {
	self := graph.ControlContext(c)
	for _, x := range op.ControlInputs() {
		isInternal := false
		for cc := x.ControlContext(); cc != nil; cc = cc.Outer() {
			if cc == self {
				isInternal = true
				break
			}
		}
		if isInternal {
			internal = append(internal, x)
		} else {
			external = append(external, x)
		}
	}
	op.RemoveAllControlInputs()
	op.AddControlInputs(internal)
	return internal, external
}

// convertExternalControlInputs turns each external control input with at
// least one output into a pass-through read of its primary output created
// inside this context, outside any control-dependency scope. The
// dependency then lives in the cluster's data-dependency graph instead of
// crossing the boundary as a raw control edge. Source operations without
// outputs are dropped.
func (c *Context) convertExternalControlInputs(sources []*graph.Operation) ([]*graph.Operation, error) {
	restore := c.graph.PushControlDependencies(nil)
	defer restore()

	c.Enter()
	defer func() {
		// Exit cannot fail here: nothing below pushes another context.
		_ = c.Exit()
	}()

	var converted []*graph.Operation
	for _, src := range sources {
		if src.NumOutputs() == 0 {
			continue
		}
		v, err := c.graph.Identity(src.Output(0), "")
		if err != nil {
			return nil, err
		}
		converted = append(converted, v.Op())
	}
	return converted, nil
}

// AddValue resolves a value reference against this context. A value
// produced outside the context is threaded through every enclosing
// context exactly once; repeated references reuse the recorded result.
func (c *Context) AddValue(val *graph.Value) (*graph.Value, error) {
	if _, seen := c.values[val.Name()]; seen {
		// Use the recorded external equivalent if the value came from an
		// enclosing context.
		if result, ok := c.externalValues[val.Name()]; ok {
			return result, nil
		}
		return val, nil
	}

	result := val
	c.values[val.Name()] = struct{}{}
	if c.outer != nil {
		outerResult, err := c.outer.AddValue(val)
		if err != nil {
			return nil, err
		}
		result = outerResult
		c.values[result.Name()] = struct{}{}
	}

	c.externalValues[val.Name()] = result
	return result, nil
}

// AddInnerOp processes an operation created inside a nested context and
// forwards the notification up the ancestor chain.
func (c *Context) AddInnerOp(op *graph.Operation) error {
	if err := c.AddOp(op); err != nil {
		return err
	}
	if c.outer != nil {
		return c.outer.AddInnerOp(op)
	}
	return nil
}

// ExitResult makes the cluster's result values visible to the enclosing
// context.
func (c *Context) ExitResult(results []*graph.Value) {
	if c.outer == nil {
		return
	}
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name())
	}
	c.outer.RecordSeenValues(names...)
}

// ReportUnsupportedOperations warns about tolerated-but-unsupported
// operations collected while the context was active, listing at most
// maxWarningLines of them.
func (c *Context) ReportUnsupportedOperations() {
	if len(c.unsupported) == 0 {
		return
	}
	shown := c.unsupported
	if len(shown) > maxWarningLines {
		shown = shown[:maxWarningLines]
	}
	lines := make([]string, 0, len(shown))
	for _, op := range shown {
		lines = append(lines, fmt.Sprintf("  %s (%s)", op.Type(), op.Name()))
	}
	c.logger.Warn(fmt.Sprintf("%d unsupported operations found:\n%s", len(c.unsupported), strings.Join(lines, "\n")))
	if remainder := len(c.unsupported) - maxWarningLines; remainder > 0 {
		c.logger.Warn(fmt.Sprintf("... and %d more", remainder))
	}
}
