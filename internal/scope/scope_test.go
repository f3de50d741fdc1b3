package scope_test

import (
	"testing"

	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclareGetSet(t *testing.T) {
	root := scope.CreateRoot()
	require.NoError(t, root.Declare("x", value.NewInt(1)))
	v, ok := root.Get("x")
	require.True(t, ok)
	assert.Equal(t, value.NewInt(1), v)

	require.NoError(t, root.Set("x", value.NewInt(2)))
	v, ok = root.Get("x")
	require.True(t, ok)
	assert.Equal(t, value.NewInt(2), v)
}

func TestSetFailsOnUndeclaredName(t *testing.T) {
	root := scope.CreateRoot()
	err := root.Set("never-declared", value.NewInt(1))
	assert.Error(t, err)
}

func TestDeclareRejectsReservedPrefix(t *testing.T) {
	root := scope.CreateRoot()
	err := root.Declare("__internal", value.NewInt(1))
	assert.Error(t, err)
}

func TestDeclareRejectsDuplicate(t *testing.T) {
	root := scope.CreateRoot()
	require.NoError(t, root.Declare("x", value.NewInt(1)))
	err := root.Declare("x", value.NewInt(2))
	assert.Error(t, err)
}

func TestChildSeesParentButNotViceVersa(t *testing.T) {
	root := scope.CreateRoot()
	require.NoError(t, root.Declare("x", value.NewInt(1)))
	child := root.CreateChild(root, scope.Block)

	v, ok := child.Get("x")
	require.True(t, ok, "a child's lexical lookup must see its parent's declarations")
	assert.Equal(t, value.NewInt(1), v)

	require.NoError(t, child.Declare("y", value.NewInt(2)))
	_, ok = root.Get("y")
	assert.False(t, ok, "a parent must never see its child's declarations")
}

func TestSetWalksUpToDeclaringScope(t *testing.T) {
	root := scope.CreateRoot()
	require.NoError(t, root.Declare("x", value.NewInt(1)))
	child := root.CreateChild(root, scope.Block)
	require.NoError(t, child.Set("x", value.NewInt(99)))
	v, ok := root.Get("x")
	require.True(t, ok)
	assert.Equal(t, value.NewInt(99), v, "Set on a name declared in an ancestor must mutate the ancestor's binding")
}

// Scope lookup monotonicity: adding a new use(s) to scope E can
// only add lookup results, never remove or change existing ones.
func TestUseMonotonicity(t *testing.T) {
	e := scope.Create(scope.Block, false, false)
	require.NoError(t, e.Declare("local", value.NewInt(1)))

	before := map[string]value.Value{}
	for _, name := range []string{"local", "fromUse"} {
		if v, ok := e.Get(name); ok {
			before[name] = v
		}
	}
	require.Contains(t, before, "local")
	require.NotContains(t, before, "fromUse")

	lib := scope.Create(scope.Namespace, false, false)
	require.NoError(t, lib.Declare("fromUse", value.Str("lib value")))
	e.Use(lib)

	v, ok := e.Get("local")
	require.True(t, ok)
	assert.Equal(t, before["local"], v, "an existing lookup result must never change after adding a use")

	v, ok = e.Get("fromUse")
	require.True(t, ok, "a new use can only add results")
	assert.Equal(t, value.Str("lib value"), v)
}

func TestUseDoesNotShadowLocalMapping(t *testing.T) {
	e := scope.Create(scope.Block, false, false)
	require.NoError(t, e.Declare("name", value.Str("local")))
	lib := scope.Create(scope.Namespace, false, false)
	require.NoError(t, lib.Declare("name", value.Str("from use")))
	e.Use(lib)

	v, ok := e.Get("name")
	require.True(t, ok)
	assert.Equal(t, value.Str("local"), v, "local mapping takes priority over uses")
}

func TestLazyNamespaceLoadsOnce(t *testing.T) {
	root := scope.CreateRoot()
	loads := 0
	ns, err := root.CreateNamespace("lib", "a lazy library", func(l *scope.Loader) error {
		loads++
		return l.Declare("answer", value.NewInt(42))
	})
	require.NoError(t, err)

	v, err := root.GetAbsolute([]string{"lib", "answer"})
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(42), v)

	// A second, independent touch must not re-run the loader.
	_ = ns.Names()
	assert.Equal(t, 1, loads)
}

func TestLazyNamespaceCycleIsPoisoned(t *testing.T) {
	root := scope.CreateRoot()
	var nsA, nsB *scope.Scope
	var err error
	nsA, err = root.CreateNamespace("a", "", func(l *scope.Loader) error {
		// Touching nsB from within nsA's own load forces nsB to load too,
		// which (since nsB's loader touches nsA back) must be detected as a
		// cycle rather than deadlocking.
		_, getErr := nsB.GetAbsolute([]string{"something"})
		return getErr
	})
	require.NoError(t, err)
	nsB, err = root.CreateNamespace("b", "", func(l *scope.Loader) error {
		_, getErr := nsA.GetAbsolute([]string{"something"})
		return getErr
	})
	require.NoError(t, err)

	_, err = root.GetAbsolute([]string{"a", "something"})
	assert.Error(t, err, "a cycle between two lazy namespaces must fail rather than hang")
}

func TestNamespaceBecomesReadonlyAfterLoad(t *testing.T) {
	root := scope.CreateRoot()
	ns, err := root.CreateNamespace("lib", "", func(l *scope.Loader) error {
		return l.Declare("x", value.NewInt(1))
	})
	require.NoError(t, err)
	_, ok := ns.Get("x") // forces the loader to run
	require.True(t, ok)
	assert.Error(t, ns.Declare("y", value.NewInt(2)), "a loaded namespace is readonly and must reject new declarations")
}

func TestBreakPropagatesToInnermostLoopAndStopsIntermediateFrames(t *testing.T) {
	root := scope.CreateRoot()
	loop := root.CreateChild(root, scope.Loop)
	block := loop.CreateChild(loop, scope.Block)

	require.NoError(t, block.DoBreak())
	assert.True(t, loop.IsStopped())
	assert.True(t, block.IsStopped())
}

func TestBreakOutsideLoopIsInvalidJump(t *testing.T) {
	root := scope.CreateRoot()
	block := root.CreateChild(root, scope.Block)
	err := block.DoBreak()
	require.Error(t, err)
	assert.Equal(t, crusherr.InvalidJump, crusherr.Of(err))
}

func TestContinueDoesNotStopTheLoopItself(t *testing.T) {
	root := scope.CreateRoot()
	loop := root.CreateChild(root, scope.Loop)
	block := loop.CreateChild(loop, scope.Block)
	require.NoError(t, block.DoContinue())
	assert.False(t, loop.IsStopped(), "continue must not mark the loop frame itself stopped")
	assert.True(t, block.IsStopped())
}

func TestReturnSetsValueOnEnclosingClosure(t *testing.T) {
	root := scope.CreateRoot()
	closureScope := root.CreateChild(root, scope.Closure)
	block := closureScope.CreateChild(closureScope, scope.Block)

	require.NoError(t, block.DoReturn(value.NewInt(7)))
	v, ok := closureScope.TakeReturnValue()
	require.True(t, ok)
	assert.Equal(t, value.NewInt(7), v)

	// TakeReturnValue clears the flag: a second call must not resurface it.
	_, ok = closureScope.TakeReturnValue()
	assert.False(t, ok)
}

func TestExitNeverFailsAndPropagatesBothChains(t *testing.T) {
	root := scope.CreateRoot()
	lexicalChild := root.CreateChild(root, scope.Block)
	caller := scope.Create(scope.Block, false, false)
	grandchild := lexicalChild.CreateChild(caller, scope.Block)

	require.NoError(t, grandchild.DoExit())
	assert.True(t, grandchild.IsStopped())
	assert.True(t, lexicalChild.IsStopped(), "exit propagates through parentScope")
	assert.True(t, caller.IsStopped(), "exit propagates through callingScope")
}

func TestDetachBreaksCycleLinks(t *testing.T) {
	loop := scope.Create(scope.Loop, false, false)
	child := loop.CreateChild(loop, scope.Closure)

	// Before Detach the closure's calling chain reaches the loop, so a
	// break from the closure scope itself succeeds.
	require.NoError(t, child.DoBreak())

	child.Detach()
	grandchild := child.CreateChild(child, scope.Block)
	// After Detach, child has no callingScope of its own, so a break
	// originating from a new child of it can no longer reach loop.
	assert.Error(t, grandchild.DoBreak())
}

func TestRedeclareOverwritesIgnoringType(t *testing.T) {
	root := scope.CreateRoot()
	require.NoError(t, root.Declare("x", value.NewInt(1)))
	require.NoError(t, root.Redeclare("x", value.Str("now a string")))
	v, ok := root.Get("x")
	require.True(t, ok)
	assert.Equal(t, value.Str("now a string"), v)
}

func TestDeclarePrivilegedAllowsReservedNames(t *testing.T) {
	root := scope.CreateRoot()
	require.NoError(t, root.DeclarePrivileged("__methods", value.NewInt(1)))
	v, ok := root.Get("__methods")
	require.True(t, ok)
	assert.Equal(t, value.NewInt(1), v)
}

func TestStackTraceIsRootFirst(t *testing.T) {
	root := scope.CreateRoot()
	closure := root.CreateChild(root, scope.Closure)
	block := closure.CreateChild(closure, scope.Block)
	trace := block.StackTrace()
	require.Len(t, trace, 3)
	assert.Contains(t, trace[0], "namespace")
	assert.Contains(t, trace[1], "closure")
	assert.Contains(t, trace[2], "block")
}
