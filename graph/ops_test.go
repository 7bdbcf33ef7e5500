package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestConst(t *testing.T) {
	g := New()

	v, err := g.Const(cty.NumberIntVal(42), "answer")
	require.NoError(t, err)
	assert.Equal(t, "answer:0", v.Name())
	assert.True(t, v.DType().Type.Equals(cty.Number))
	assert.False(t, v.DType().IsRef())
	assert.True(t, v.Op().Literal().RawEquals(cty.NumberIntVal(42)))

	_, err = g.Const(cty.NilVal, "bad")
	assert.Error(t, err)
}

func TestIdentity_PreservesDType(t *testing.T) {
	g := New()

	v, err := g.Const(cty.StringVal("x"), "c")
	require.NoError(t, err)

	id, err := g.Identity(v, "id")
	require.NoError(t, err)
	assert.Equal(t, "Identity", id.Op().Type())
	assert.True(t, id.DType().Type.Equals(cty.String))
	assert.Same(t, v, id.Op().Input(0))
}

func TestVariables(t *testing.T) {
	g := New()

	ref, err := g.RefVariable("legacy", cty.Number)
	require.NoError(t, err)
	assert.True(t, ref.DType().IsRef())
	assert.Equal(t, "VariableV2", ref.Op().Type())

	handle, err := g.VarHandle("modern", cty.Number)
	require.NoError(t, err)
	assert.False(t, handle.DType().IsRef())
	assert.True(t, handle.DType().Type.Equals(Resource))

	read, err := g.ReadVariable(handle, cty.Number, "modern/Read")
	require.NoError(t, err)
	assert.False(t, read.DType().IsRef())
	assert.True(t, read.DType().Type.Equals(cty.Number))

	// Reading a non-handle value is rejected.
	c, err := g.Const(cty.NumberIntVal(1), "c")
	require.NoError(t, err)
	_, err = g.ReadVariable(c, cty.Number, "bad")
	assert.Error(t, err)
}

func TestGroup(t *testing.T) {
	g := New()

	a, err := g.NoOp("a")
	require.NoError(t, err)
	b, err := g.NoOp("b")
	require.NoError(t, err)

	grp, err := g.Group("grp", a, b)
	require.NoError(t, err)
	assert.Equal(t, "NoOp", grp.Type())
	assert.ElementsMatch(t, []*Operation{a, b}, grp.ControlInputs())
}

func TestConvertToValue(t *testing.T) {
	g := New()

	existing, err := g.Const(cty.NumberIntVal(7), "c")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		input    any
		wantType cty.Type
	}{
		{name: "int", input: 42, wantType: cty.Number},
		{name: "string", input: "hello", wantType: cty.String},
		{name: "bool", input: true, wantType: cty.Bool},
		{name: "int slice", input: []int{1, 2, 3}, wantType: cty.List(cty.Number)},
		{name: "cty value", input: cty.NumberFloatVal(1.5), wantType: cty.Number},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := g.ConvertToValue(tc.input)
			require.NoError(t, err)
			assert.True(t, v.DType().Type.Equals(tc.wantType), "got %s", v.DType())
			assert.Equal(t, "Const", v.Op().Type())
		})
	}

	t.Run("graph value passes through", func(t *testing.T) {
		v, err := g.ConvertToValue(existing)
		require.NoError(t, err)
		assert.Same(t, existing, v)
	})

	t.Run("inconvertible", func(t *testing.T) {
		_, err := g.ConvertToValue(make(chan int))
		assert.Error(t, err)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := g.ConvertToValue(nil)
		assert.Error(t, err)
	})
}
