package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/safepdf/core"
)

// mockSource is a map-backed ObjectSource for testing
type mockSource map[int]core.Object

func (m mockSource) Lookup(num int) (core.Object, bool) {
	obj, ok := m[num]
	return obj, ok
}

func ref(n int) core.IndirectRef {
	return core.IndirectRef{Number: n}
}

// TestClosureOrder checks the breadth-first, sorted-key discovery order
func TestClosureOrder(t *testing.T) {
	src := mockSource{
		1: core.Dict{"Z": ref(3), "A": ref(2)},
		2: core.Array{ref(4), ref(1)},
		3: &core.Stream{Dict: core.Dict{"Length": ref(5)}},
		4: core.Int(1),
		5: core.Int(10),
		6: core.Int(99), // unreachable
	}

	c, err := NewWalker(src).Closure(context.Background(), ref(1))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, c.Order)
	assert.False(t, c.Contains(6), "unreachable object included")
	assert.Equal(t, 5, c.Len())
}

// TestClosureCycles tests that cyclic graphs terminate
func TestClosureCycles(t *testing.T) {
	src := mockSource{
		1: core.Dict{"Next": ref(2)},
		2: core.Dict{"Next": ref(1), "Self": ref(2)},
	}
	c, err := NewWalker(src).Closure(context.Background(), ref(1))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, c.Order)
}

// TestClosureMissing tests that dangling references are reported
func TestClosureMissing(t *testing.T) {
	src := mockSource{1: core.Array{ref(9), ref(7), ref(9)}}
	c, err := NewWalker(src).Closure(context.Background(), ref(1))
	require.NoError(t, err)
	assert.Equal(t, []int{7, 9}, c.Missing)
}

func TestClosureSkip(t *testing.T) {
	src := mockSource{
		1: core.Dict{"Type": core.Name("Page"), "Parent": ref(2), "Dest": ref(3), "Font": ref(4)},
		2: core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(1), ref(3)}},
		3: core.Dict{"Type": core.Name("Page"), "Parent": ref(2)},
		4: core.Dict{"Type": core.Name("Font")},
	}
	skipPages := func(num int, obj core.Object) bool {
		d, _ := obj.(core.Dict)
		typ, _ := d.GetName("Type")
		return num != 1 && (typ == "Page" || typ == "Pages")
	}
	w := NewWalker(src, WithSkipKeys("Parent"), WithSkip(skipPages))
	c, err := w.Closure(context.Background(), ref(1))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, c.Sorted())
}

// TestClosureDirectRoots tests roots given as direct objects
func TestClosureDirectRoots(t *testing.T) {
	src := mockSource{3: core.Int(1), 4: core.Int(2)}
	trailer := core.Dict{"Root": ref(4), "Info": ref(3), "Size": core.Int(5)}
	c, err := NewWalker(src).Closure(context.Background(), trailer)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, c.Order)
}

func TestClosureCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWalker(mockSource{1: core.Null{}}).Closure(ctx, ref(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReferences(t *testing.T) {
	obj := core.Dict{
		"B": core.Array{ref(2), core.Dict{"X": ref(3)}},
		"A": ref(1),
		"C": core.Int(5),
	}
	assert.Equal(t, []core.IndirectRef{ref(1), ref(2), ref(3)}, References(obj))
	assert.Empty(t, References(core.Int(1)))
}

// TestRenumber tests mapping and nulling of references
func TestRenumber(t *testing.T) {
	stream := &core.Stream{Dict: core.Dict{"Length": ref(5)}, Data: []byte("abc")}
	orig := core.Dict{
		"Kept":    ref(5),
		"Dropped": ref(6),
		"List":    core.Array{ref(5), core.Name("x")},
		"Stream":  stream,
	}
	got := Renumber(orig, map[int]int{5: 1}).(core.Dict)

	assert.Equal(t, ref(1), got["Kept"])
	assert.Equal(t, core.Null{}, got["Dropped"])
	assert.Equal(t, core.Array{ref(1), core.Name("x")}, got["List"])
	s := got["Stream"].(*core.Stream)
	assert.NotSame(t, stream, s)
	assert.Equal(t, ref(1), s.Dict["Length"])
	assert.Equal(t, []byte("abc"), s.Data)

	// Original untouched
	assert.Equal(t, ref(5), orig["Kept"])
	assert.Equal(t, ref(5), stream.Dict["Length"])
}

func TestRewriteGenerations(t *testing.T) {
	orig := core.Array{core.IndirectRef{Number: 4, Generation: 2}, core.Dict{"P": core.IndirectRef{Number: 7, Generation: 1}}}
	got := Rewrite(orig, func(r core.IndirectRef) core.Object {
		return core.IndirectRef{Number: r.Number}
	})
	assert.Equal(t, core.Array{ref(4), core.Dict{"P": ref(7)}}, got)
	assert.Equal(t, core.IndirectRef{Number: 4, Generation: 2}, orig[0])
}
