package xla

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/gmarzioz/tensorflow/graph"
)

// newCluster builds a graph with a pivot and an active cluster context.
func newCluster(t *testing.T, logger *slog.Logger) (*graph.Graph, *Context) {
	t.Helper()
	g := graph.New()
	name := g.UniqueName("cluster")
	pivot, err := g.NoOp(name + "/pivot")
	require.NoError(t, err)
	return g, NewContext(g, name, pivot, logger)
}

func TestAddOp_TagsAndAnchorsParentlessOps(t *testing.T) {
	g, cluster := newCluster(t, nil)

	cluster.Enter()
	op, err := g.NoOp("inner")
	require.NoError(t, err)
	require.NoError(t, cluster.Exit())

	tag, ok := op.Attr(CompileAttr)
	require.True(t, ok)
	assert.Equal(t, cluster.Name(), tag)

	// Parentless ops gain a control edge on the pivot.
	assert.Equal(t, []*graph.Operation{cluster.Pivot()}, op.ControlInputs())

	assert.False(t, g.IsFeedable(op))
	assert.False(t, g.IsFetchable(op))
}

func TestAddOp_NoPivotWithInternalControlInput(t *testing.T) {
	g, cluster := newCluster(t, nil)

	cluster.Enter()
	a, err := g.NoOp("a")
	require.NoError(t, err)

	b, err := g.AddOperation(graph.OpSpec{Type: "NoOp", Name: "b", ControlInputs: []*graph.Operation{a}})
	require.NoError(t, err)
	require.NoError(t, cluster.Exit())

	assert.Equal(t, []*graph.Operation{a}, b.ControlInputs())
}

func TestAddOp_RejectsRefTypedInputs(t *testing.T) {
	g, cluster := newCluster(t, nil)

	ref, err := g.RefVariable("legacy", cty.Number)
	require.NoError(t, err)

	cluster.Enter()
	_, err = g.Identity(ref, "read")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-resource variables are not supported")
	require.NoError(t, cluster.Exit())
}

func TestAddOp_RejectsNestedClusters(t *testing.T) {
	g, outer := newCluster(t, nil)

	outer.Enter()
	innerPivot, err := g.NoOp("inner/pivot")
	require.NoError(t, err)

	inner := NewContext(g, g.UniqueName("cluster"), innerPivot, nil)
	inner.Enter()
	_, err = g.NoOp("doubly_nested")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nested")
	require.NoError(t, inner.Exit())
	require.NoError(t, outer.Exit())
}

func TestAddOp_ConvertsExternalControlInputs(t *testing.T) {
	g, cluster := newCluster(t, nil)

	// One external source with an output, one without.
	src, err := g.Const(cty.NumberIntVal(1), "src")
	require.NoError(t, err)
	bare, err := g.NoOp("bare")
	require.NoError(t, err)

	cluster.Enter()
	op, err := g.AddOperation(graph.OpSpec{
		Type:          "NoOp",
		Name:          "dependent",
		ControlInputs: []*graph.Operation{src.Op(), bare},
	})
	require.NoError(t, err)
	require.NoError(t, cluster.Exit())

	ctrl := op.ControlInputs()
	require.Len(t, ctrl, 2, "pivot plus one converted pass-through")
	assert.Same(t, cluster.Pivot(), ctrl[0])

	converted := ctrl[1]
	assert.Equal(t, "Identity", converted.Type())
	assert.Same(t, src, converted.Input(0))
	tag, ok := converted.Attr(CompileAttr)
	require.True(t, ok, "the pass-through is created inside the cluster")
	assert.Equal(t, cluster.Name(), tag)

	// The raw cross-boundary control edges are gone.
	for _, c := range ctrl {
		assert.NotSame(t, src.Op(), c)
		assert.NotSame(t, bare, c)
	}
}

func TestAddOp_RewritesInputsThroughOuterContext(t *testing.T) {
	g := graph.New()

	outerVal, err := g.Const(cty.NumberIntVal(1), "outer_val")
	require.NoError(t, err)
	substitute, err := g.Const(cty.NumberIntVal(1), "substitute")
	require.NoError(t, err)

	fake := &fakeOuterContext{substitutes: map[*graph.Value]*graph.Value{outerVal: substitute}}
	g.PushControlContext(fake)

	pivot, err := g.NoOp("cluster/pivot")
	require.NoError(t, err)
	cluster := NewContext(g, g.UniqueName("cluster"), pivot, nil)
	require.Same(t, graph.ControlContext(fake), cluster.Outer())

	cluster.Enter()
	id, err := g.Identity(outerVal, "use")
	require.NoError(t, err)
	require.NoError(t, cluster.Exit())
	require.NoError(t, g.PopControlContext(fake))

	// The consuming op was rewired to the outer context's resolution.
	assert.Same(t, substitute, id.Op().Input(0))
	// The inner op was reported upward.
	assert.NotEmpty(t, fake.innerOps)
}

func TestAddValue_Idempotent(t *testing.T) {
	g := graph.New()

	outerVal, err := g.Const(cty.NumberIntVal(1), "v")
	require.NoError(t, err)
	substitute, err := g.Const(cty.NumberIntVal(1), "sub")
	require.NoError(t, err)

	fake := &fakeOuterContext{substitutes: map[*graph.Value]*graph.Value{outerVal: substitute}}
	g.PushControlContext(fake)
	pivot, err := g.NoOp("cluster/pivot")
	require.NoError(t, err)
	cluster := NewContext(g, g.UniqueName("cluster"), pivot, nil)
	require.NoError(t, g.PopControlContext(fake))

	first, err := cluster.AddValue(outerVal)
	require.NoError(t, err)
	second, err := cluster.AddValue(outerVal)
	require.NoError(t, err)

	assert.Same(t, substitute, first)
	assert.Same(t, first, second)
	assert.Equal(t, 1, fake.addValueCalls, "outer resolution happens exactly once")
}

func TestAddValue_NoOuterReturnsSameValue(t *testing.T) {
	g, cluster := newCluster(t, nil)

	v, err := g.Const(cty.NumberIntVal(1), "v")
	require.NoError(t, err)

	first, err := cluster.AddValue(v)
	require.NoError(t, err)
	second, err := cluster.AddValue(v)
	require.NoError(t, err)
	assert.Same(t, v, first)
	assert.Same(t, v, second)
}

func TestAddOp_BlacklistedLogsButContinues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	g, cluster := newCluster(t, logger)

	cluster.Enter()
	ph, err := g.Placeholder(cty.Number, "feed")
	require.NoError(t, err, "blacklisted ops fail at execution time, not construction time")
	require.NoError(t, cluster.Exit())

	_, tagged := ph.Op().Attr(CompileAttr)
	assert.True(t, tagged)
	assert.Contains(t, buf.String(), "Placeholder")
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestReportUnsupportedOperations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	g, cluster := newCluster(t, logger)

	v, err := g.Const(cty.NumberIntVal(1), "v")
	require.NoError(t, err)

	cluster.Enter()
	for i := 0; i < 7; i++ {
		_, err := g.Print(v, fmt.Sprintf("print_%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, cluster.Exit())

	cluster.ReportUnsupportedOperations()
	out := buf.String()
	assert.Contains(t, out, "7 unsupported operations found")
	assert.Contains(t, out, "print_0")
	assert.Contains(t, out, "print_4")
	assert.NotContains(t, out, "print_5", "only the first five are listed")
	assert.Contains(t, out, "and 2 more")
}

func TestReportUnsupportedOperations_SilentWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	_, cluster := newCluster(t, logger)

	cluster.ReportUnsupportedOperations()
	assert.Empty(t, buf.String())
}

// fakeOuterContext stands in for an enclosing control-flow context that
// substitutes values crossing its boundary.
type fakeOuterContext struct {
	substitutes   map[*graph.Value]*graph.Value
	innerOps      []*graph.Operation
	seen          []string
	addValueCalls int
}

func (f *fakeOuterContext) AddOp(op *graph.Operation) error { return nil }

func (f *fakeOuterContext) AddInnerOp(op *graph.Operation) error {
	f.innerOps = append(f.innerOps, op)
	return nil
}

func (f *fakeOuterContext) AddValue(v *graph.Value) (*graph.Value, error) {
	f.addValueCalls++
	if sub, ok := f.substitutes[v]; ok {
		return sub, nil
	}
	return v, nil
}

func (f *fakeOuterContext) RecordSeenValues(names ...string) {
	f.seen = append(f.seen, names...)
}

func (f *fakeOuterContext) Outer() graph.ControlContext { return nil }
