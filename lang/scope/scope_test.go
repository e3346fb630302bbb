package scope_test

import (
	"testing"

	"github.com/mna/fmlc/lang/scope"
	"github.com/stretchr/testify/require"
)

// TestIntroduceLookupShadow checks that local indices are monotonic:
// once a scope is left, its freed indices are never reused within the
// same function.
func TestIntroduceLookupShadow(t *testing.T) {
	f := scope.NewLocal()

	idx, err := f.Introduce("a")
	require.NoError(t, err)
	require.EqualValues(t, 0, idx)

	idx, err = f.Introduce("b")
	require.NoError(t, err)
	require.EqualValues(t, 1, idx)

	_, err = f.Introduce("a")
	require.Error(t, err)
	var redecl *scope.RedeclaredError
	require.ErrorAs(t, err, &redecl)

	f.EnterScope()
	idx, err = f.Introduce("a") // shadows outer "a"
	require.NoError(t, err)
	require.EqualValues(t, 2, idx)

	idx, ok := f.Lookup("a")
	require.True(t, ok)
	require.EqualValues(t, 2, idx, "inner scope's binding wins")

	require.NoError(t, f.LeaveScope())
	idx, ok = f.Lookup("a")
	require.True(t, ok)
	require.EqualValues(t, 0, idx, "outer binding visible again after leaving scope")

	// the local counter never rewinds, even though scope 2 (which held
	// index 2) was popped.
	idx, err = f.Introduce("c")
	require.NoError(t, err)
	require.EqualValues(t, 3, idx)
}

func TestLeaveScopeBalance(t *testing.T) {
	f := scope.NewLocal()
	require.NoError(t, f.LeaveScope()) // the initial scope from NewLocal
	require.ErrorIs(t, f.LeaveScope(), scope.ErrNoScope)
}

func TestIsOutermost(t *testing.T) {
	f := scope.NewTop()
	require.True(t, f.IsOutermost())
	f.EnterScope()
	require.False(t, f.IsOutermost())
	require.NoError(t, f.LeaveScope())
	require.True(t, f.IsOutermost())
}

func TestLookupMiss(t *testing.T) {
	f := scope.NewLocal()
	_, ok := f.Lookup("nope")
	require.False(t, ok)
}

func TestGlobals(t *testing.T) {
	var g scope.Globals
	require.EqualValues(t, 0, g.Len())
	g.Push(3)
	g.Push(7)
	require.EqualValues(t, 2, g.Len())
	require.Equal(t, []uint16{3, 7}, g.Indices())
}
