package exec_test

import (
	"math/big"
	"runtime"
	"testing"
	"time"

	"github.com/crushshell/crush/internal/ast"
	"github.com/crushshell/crush/internal/builtin"
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/exec"
	"github.com/crushshell/crush/internal/plan"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ident(name string) ast.Identifier { return ast.Identifier{Name: name} }

func intLit(n int64) ast.IntegerLit { return ast.IntegerLit{Value: big.NewInt(n)} }

func strLit(s string) ast.StringLit { return ast.StringLit{Value: s, Quoted: true} }

func cmd(exprs ...ast.Node) ast.Command { return ast.Command{Expressions: exprs} }

func job(cmds ...ast.Command) ast.Job { return ast.Job{Commands: cmds} }

func jobList(jobs ...ast.Job) ast.JobList { return ast.JobList{Jobs: jobs} }

func subst(jobs ...ast.Job) ast.Substitution {
	return ast.Substitution{Body: jobList(jobs...)}
}

func block(jobs ...ast.Job) ast.Closure {
	return ast.Closure{Body: jobList(jobs...)}
}

func newRoot(t *testing.T) (*scope.Scope, *command.GlobalState) {
	t.Helper()
	root := scope.CreateRoot()
	require.NoError(t, builtin.Install(root))
	global := command.NewGlobalState()
	root.SetGlobal(global)
	return root, global
}

func run(t *testing.T, root *scope.Scope, global *command.GlobalState, jl ast.JobList) (value.Value, error) {
	t.Helper()
	p, err := plan.Lower(jl)
	require.NoError(t, err)
	return exec.RunProgram(root, p, global)
}

// runWithDeadline guards against a wedged pipeline: the scheduler must tear
// every job down within bounded time even when stages stop reading early.
func runWithDeadline(t *testing.T, root *scope.Scope, global *command.GlobalState, jl ast.JobList) (value.Value, error) {
	t.Helper()
	p, err := plan.Lower(jl)
	require.NoError(t, err)
	type result struct {
		v   value.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := exec.RunProgram(root, p, global)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not terminate")
		return nil, nil
	}
}

func intCells(t *testing.T, tbl value.Table) []int64 {
	t.Helper()
	out := make([]int64, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		require.Len(t, row, 1)
		iv, ok := row[0].(value.Int)
		require.True(t, ok, "expected an integer cell, got %s", row[0].Type())
		out = append(out, iv.V.Int64())
	}
	return out
}

func TestSingleCommandReturnsValue(t *testing.T) {
	root, global := newRoot(t)
	jl := jobList(job(cmd(ident("global:string:upper"), strLit("shout"))))
	v, err := run(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.Str("SHOUT"), v)
}

func TestQualifiedNameResolution(t *testing.T) {
	root, global := newRoot(t)
	jl := jobList(job(cmd(ident("global:math:max"), intLit(3), intLit(9))))
	v, err := run(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(9), v)
}

func TestCalleeMustBeCommand(t *testing.T) {
	root, global := newRoot(t)
	require.NoError(t, root.Declare("notACommand", value.NewInt(1)))
	jl := jobList(job(cmd(ident("notACommand"), intLit(2))))
	_, err := run(t, root, global, jl)
	require.Error(t, err)
	assert.Equal(t, crusherr.TypeError, crusherr.Of(err))
}

// Aggregation and ordering through a three-stage pipeline:
// list:of 5 2 9 1 7 | sort | head 3 yields 1, 2, 5 in that order.
func TestPipelineSortHead(t *testing.T) {
	root, global := newRoot(t)
	jl := jobList(job(
		cmd(ident("list:of"), intLit(5), intLit(2), intLit(9), intLit(1), intLit(7)),
		cmd(ident("sort")),
		cmd(ident("head"), intLit(3)),
	))
	v, err := runWithDeadline(t, root, global, jl)
	require.NoError(t, err)

	out, err := value.Materialize(v)
	require.NoError(t, err)
	tbl, ok := out.(value.Table)
	require.True(t, ok, "pipeline tail must materialize into a table, got %s", out.Type())
	assert.Equal(t, []int64{1, 2, 5}, intCells(t, tbl))
}

// Closure capture: x := 10; incr := { |n| $n + $x }; incr 5 yields 15, and a
// shadowing x declared afterwards in a different frame must not change what
// the already-made closure sees.
func TestClosureCapturesLexicalScope(t *testing.T) {
	root, global := newRoot(t)
	incr := ast.Closure{
		Params: []ast.Parameter{{Name: "n"}},
		Body:   jobList(job(cmd(ident("+"), ident("n"), ident("x")))),
	}
	jl := jobList(
		job(cmd(ast.Assignment{Target: ident("x"), Op: ast.AssignDeclare, Value: intLit(10)})),
		job(cmd(ast.Assignment{Target: ident("incr"), Op: ast.AssignDeclare, Value: incr})),
		job(cmd(ident("incr"), intLit(5))),
	)
	v, err := run(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(15), v)

	// A fresh frame shadows x; the closure still resolves x through the
	// scope it captured at creation.
	frame := root.CreateChild(root, scope.Block)
	require.NoError(t, frame.Declare("x", value.NewInt(99)))
	p, err := plan.Lower(jobList(job(cmd(ident("incr"), intLit(5)))))
	require.NoError(t, err)
	v, err = exec.RunJobs(frame, p.Jobs, nil, nil, global)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(15), v)
}

// Error propagation: seq 5 | each { |r| if ($r == 3) { error "boom" } else
// { $r } } emits 1, 2, then the stream fails with the tagged DataError; 4
// and 5 are never emitted.
func TestPipelineErrorPropagation(t *testing.T) {
	root, global := newRoot(t)
	cond := subst(job(cmd(ident("=="), ident("r"), intLit(3))))
	thenBoom := block(job(cmd(ident("error"), strLit("boom"))))
	elseR := block(job(cmd(ident("r"))))
	eachBody := ast.Closure{
		Params: []ast.Parameter{{Name: "r"}},
		Body:   jobList(job(cmd(ident("if"), cond, thenBoom, ident("else"), elseR))),
	}
	jl := jobList(job(
		cmd(ident("seq"), intLit(5)),
		cmd(ident("each"), eachBody),
	))
	v, err := runWithDeadline(t, root, global, jl)
	require.NoError(t, err)
	ts, ok := v.(value.TableStream)
	require.True(t, ok)

	require.NoError(t, ts.MarkConsumed())
	var seen []int64
	var streamErr error
	for {
		row, ok, err := ts.Handle().Recv()
		if err != nil {
			streamErr = err
			break
		}
		if !ok {
			break
		}
		require.Len(t, row, 1)
		seen = append(seen, row[0].(value.Int).V.Int64())
	}
	assert.Equal(t, []int64{1, 2}, seen)
	require.Error(t, streamErr)
	assert.Equal(t, crusherr.DataError, crusherr.Of(streamErr))
	assert.Contains(t, streamErr.Error(), "boom")
}

// materialized{ seq 3 } converts the stream into an owned table that can be
// used any number of times; a bare stream value is consumed exactly once.
func TestMaterializedValueIsReusable(t *testing.T) {
	root, global := newRoot(t)
	body := block(job(cmd(ident("seq"), intLit(3))))
	jl := jobList(
		job(cmd(ast.Assignment{Target: ident("xs"), Op: ast.AssignDeclare, Value: subst(job(cmd(ident("materialized"), body)))})),
		job(cmd(ident("xs"))),
		job(cmd(ident("xs"))),
	)
	v, err := runWithDeadline(t, root, global, jl)
	require.NoError(t, err)
	tbl, ok := v.(value.Table)
	require.True(t, ok, "materialized must produce an owned table, got %s", v.Type())
	assert.Equal(t, []int64{1, 2, 3}, intCells(t, tbl))

	// Reading it a second and third time keeps yielding the same rows.
	p, err := plan.Lower(jobList(job(cmd(ident("xs")))))
	require.NoError(t, err)
	again, err := exec.RunJobs(root, p.Jobs, nil, nil, global)
	require.NoError(t, err)
	eq, err := value.Eq(v, again)
	require.NoError(t, err)
	assert.True(t, eq)
}

// Break inside nested blocks: loop { for i = (seq 100) { if ($i == 7)
// { break } }; break } terminates without wedging the scheduler.
func TestBreakInsideNestedBlocksTerminates(t *testing.T) {
	root, global := newRoot(t)
	innerBreak := block(job(cmd(ident("break"))))
	forBody := block(job(cmd(ident("if"), subst(job(cmd(ident("=="), ident("i"), intLit(7)))), innerBreak)))
	forCmd := cmd(ident("for"),
		ast.Assignment{Target: ident("i"), Op: ast.AssignSet, Value: subst(job(cmd(ident("seq"), intLit(100))))},
		forBody,
	)
	loopBody := block(job(forCmd), job(cmd(ident("break"))))
	jl := jobList(job(cmd(ident("loop"), loopBody)))

	_, err := runWithDeadline(t, root, global, jl)
	require.NoError(t, err)
}

// A downstream stage that stops reading early (head) must cleanly stop the
// upstream producer rather than fail the job or leak a blocked goroutine,
// even when the producer emits more rows than one channel can buffer.
func TestEarlyStopTearsDownUpstream(t *testing.T) {
	root, global := newRoot(t)
	jl := jobList(job(
		cmd(ident("seq"), intLit(1000)),
		cmd(ident("head"), intLit(3)),
	))
	v, err := runWithDeadline(t, root, global, jl)
	require.NoError(t, err)
	out, err := value.Materialize(v)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, intCells(t, out.(value.Table)))
}

func TestWhileLoopCountsDown(t *testing.T) {
	root, global := newRoot(t)
	// n := 3; while ($n > 0) { n = $n - 1 }; n
	condition := subst(job(cmd(ident(">"), ident("n"), intLit(0))))
	body := block(job(cmd(ast.Assignment{
		Target: ident("n"), Op: ast.AssignSet,
		Value: subst(job(cmd(ident("-"), ident("n"), intLit(1)))),
	})))
	jl := jobList(
		job(cmd(ast.Assignment{Target: ident("n"), Op: ast.AssignDeclare, Value: intLit(3)})),
		job(cmd(ident("while"), condition, body)),
		job(cmd(ident("n"))),
	)
	v, err := runWithDeadline(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(0), v)
}

func TestBreakOutsideLoopFailsWithInvalidJump(t *testing.T) {
	root, global := newRoot(t)
	_, err := run(t, root, global, jobList(job(cmd(ident("break")))))
	require.Error(t, err)
	assert.Equal(t, crusherr.InvalidJump, crusherr.Of(err))
}

func TestReturnExitsClosureEarly(t *testing.T) {
	root, global := newRoot(t)
	cl := ast.Closure{Body: jobList(
		job(cmd(ident("return"), intLit(42))),
		job(cmd(ident("error"), strLit("unreachable"))),
	)}
	jl := jobList(
		job(cmd(ast.Assignment{Target: ident("f"), Op: ast.AssignDeclare, Value: cl})),
		job(cmd(ident("f"))),
	)
	v, err := run(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(42), v)
}

func TestExitRecordsStatus(t *testing.T) {
	root, global := newRoot(t)
	_, err := run(t, root, global, jobList(job(cmd(ident("exit"), intLit(3)))))
	require.NoError(t, err)
	code, requested := global.ExitCode()
	assert.True(t, requested)
	assert.Equal(t, 3, code)
}

func TestMethodDispatchOnScalars(t *testing.T) {
	root, global := newRoot(t)

	v, err := run(t, root, global, jobList(job(cmd(ident("+"), intLit(2), intLit(3)))))
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(5), v)

	v, err = run(t, root, global, jobList(job(cmd(ident("*"), intLit(4), intLit(5)))))
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(20), v)

	v, err = run(t, root, global, jobList(job(cmd(ident("+"), strLit("n="), intLit(3)))))
	require.NoError(t, err)
	assert.Equal(t, value.Str("n=3"), v)

	_, err = run(t, root, global, jobList(job(cmd(ident("/"), intLit(1), intLit(0)))))
	require.Error(t, err)
	assert.Equal(t, crusherr.DataError, crusherr.Of(err))
}

func TestMatchOperatorDesugarsToRightOperand(t *testing.T) {
	root, global := newRoot(t)
	v, err := run(t, root, global, jobList(job(cmd(ident("=~"), strLit("abc"), ast.GlobLit{Pattern: "a*"}))))
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), v)

	v, err = run(t, root, global, jobList(job(cmd(ident("!~"), strLit("xyz"), ast.GlobLit{Pattern: "a*"}))))
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), v)
}

func TestSubscriptAssignmentAndAccess(t *testing.T) {
	root, global := newRoot(t)
	require.NoError(t, root.Declare("xs", value.NewList(value.TypeInteger, []value.Value{
		value.NewInt(1), value.NewInt(2),
	})))

	// xs[1] = 9; xs[1]
	jl := jobList(
		job(cmd(ast.Assignment{
			Target: ast.GetItem{Target: ident("xs"), Index: intLit(1)},
			Op:     ast.AssignSet,
			Value:  intLit(9),
		})),
		job(cmd(ast.GetItem{Target: ident("xs"), Index: intLit(1)})),
	)
	v, err := run(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(9), v)
}

func TestAttrAssignmentOnStruct(t *testing.T) {
	root, global := newRoot(t)
	s := value.NewStruct(nil)
	s.Set("name", value.Str("old"))
	require.NoError(t, root.Declare("rec", s))

	jl := jobList(
		job(cmd(ast.Assignment{
			Target: ast.GetAttr{Target: ident("rec"), Name: "name"},
			Op:     ast.AssignSet,
			Value:  strLit("new"),
		})),
		job(cmd(ast.GetAttr{Target: ident("rec"), Name: "name"})),
	)
	v, err := run(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.Str("new"), v)
}

func TestDeclareRequiresIdentifierTarget(t *testing.T) {
	root, global := newRoot(t)
	require.NoError(t, root.Declare("xs", value.NewList(value.TypeInteger, nil)))
	jl := jobList(job(cmd(ast.Assignment{
		Target: ast.GetItem{Target: ident("xs"), Index: intLit(0)},
		Op:     ast.AssignDeclare,
		Value:  intLit(1),
	})))
	_, err := run(t, root, global, jl)
	require.Error(t, err)
	assert.Equal(t, crusherr.CompileError, crusherr.Of(err))
}

func TestSetEnforcesDeclaredType(t *testing.T) {
	root, global := newRoot(t)
	jl := jobList(
		job(cmd(ast.Assignment{Target: ident("x"), Op: ast.AssignDeclare, Value: intLit(1)})),
		job(cmd(ast.Assignment{Target: ident("x"), Op: ast.AssignSet, Value: strLit("nope")})),
	)
	_, err := run(t, root, global, jl)
	require.Error(t, err)
	assert.Equal(t, crusherr.TypeError, crusherr.Of(err))
}

func TestSplatExpandsListIntoPositionals(t *testing.T) {
	root, global := newRoot(t)
	require.NoError(t, root.Declare("pair", value.NewList(value.TypeInteger, []value.Value{
		value.NewInt(7), value.NewInt(4),
	})))
	jl := jobList(job(cmd(
		ident("global:math:max"),
		ast.Unary{Op: ast.UnarySplat, Operand: ident("pair")},
	)))
	v, err := run(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(7), v)
}

func TestDictSplatBindsNamedArguments(t *testing.T) {
	root, global := newRoot(t)
	opts := value.NewDict(value.TypeString, value.Any)
	require.NoError(t, opts.Set(value.Str("name"), value.Str("answer")))
	require.NoError(t, opts.Set(value.Str("value"), value.NewInt(42)))
	require.NoError(t, root.Declare("opts", opts))

	jl := jobList(
		job(cmd(ident("global:var:let"), ast.Unary{Op: ast.UnaryDictSplat, Operand: ident("opts")})),
		job(cmd(ident("answer"))),
	)
	v, err := run(t, root, global, jl)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(42), v)
}

func TestBindingRejectsUnknownNamedArgument(t *testing.T) {
	root, global := newRoot(t)
	jl := jobList(job(cmd(ident("seq"), ast.Assignment{
		Target: ident("bogus"), Op: ast.AssignSet, Value: intLit(1),
	})))
	_, err := run(t, root, global, jl)
	require.Error(t, err)
	assert.Equal(t, crusherr.ArgumentError, crusherr.Of(err))
}

func TestBindingRejectsMissingRequiredArgument(t *testing.T) {
	root, global := newRoot(t)
	_, err := run(t, root, global, jobList(job(cmd(ident("seq")))))
	require.Error(t, err)
	assert.Equal(t, crusherr.ArgumentError, crusherr.Of(err))
}

func TestBindingRejectsWrongArgumentType(t *testing.T) {
	root, global := newRoot(t)
	_, err := run(t, root, global, jobList(job(cmd(ident("seq"), strLit("three")))))
	require.Error(t, err)
	assert.Equal(t, crusherr.ArgumentError, crusherr.Of(err))
}

// Binding totality: a well-typed argument list matching a schema binds with
// every argument consumed exactly once — positionals in declaration order,
// named by name, leftovers into the declared sinks.
func TestBindArgumentsTotality(t *testing.T) {
	root, _ := newRoot(t)
	params := []command.ArgumentDescription{
		{Name: "a", Type: value.TypeInteger, Required: true},
		{Name: "b", Type: value.TypeString, Required: true},
		{Name: "c", Type: value.TypeInteger, Default: value.NewInt(9)},
		{Name: "rest", Unnamed: true},
	}
	args := []plan.Argument{
		{Kind: plan.ArgNamed, Name: "b", Expr: strLit("named")},
		{Kind: plan.ArgPositional, Expr: intLit(1)},
		{Kind: plan.ArgPositional, Expr: intLit(2)},
		{Kind: plan.ArgPositional, Expr: intLit(3)},
	}
	bound, err := exec.BindArguments(root, params, args)
	require.NoError(t, err)

	a, ok := bound.Get("a")
	require.True(t, ok)
	assert.Equal(t, value.NewInt(1), a)
	b, ok := bound.Get("b")
	require.True(t, ok)
	assert.Equal(t, value.Str("named"), b)
	c, ok := bound.Get("c")
	require.True(t, ok)
	assert.Equal(t, value.NewInt(2), c, "the next positional fills c before the default applies")

	rest := bound.UnnamedList().Items()
	require.Len(t, rest, 1)
	assert.Equal(t, value.NewInt(3), rest[0])
}

func TestBindArgumentsAllowedValues(t *testing.T) {
	root, _ := newRoot(t)
	params := []command.ArgumentDescription{
		{Name: "mode", Type: value.TypeString, Required: true,
			AllowedValues: []value.Value{value.Str("fast"), value.Str("safe")}},
	}
	_, err := exec.BindArguments(root, params, []plan.Argument{
		{Kind: plan.ArgPositional, Expr: strLit("fast")},
	})
	require.NoError(t, err)

	_, err = exec.BindArguments(root, params, []plan.Argument{
		{Kind: plan.ArgPositional, Expr: strLit("reckless")},
	})
	require.Error(t, err)
	assert.Equal(t, crusherr.ArgumentError, crusherr.Of(err))
}

func TestNamedSinkSchemaRejectsUnknownOption(t *testing.T) {
	root, _ := newRoot(t)
	params := []command.ArgumentDescription{
		{Name: "opts", Named: true,
			AllowedValues: []value.Value{value.Str("depth"), value.Str("verbose")}},
	}
	_, err := exec.BindArguments(root, params, []plan.Argument{
		{Kind: plan.ArgNamed, Name: "depth", Expr: intLit(2)},
	})
	require.NoError(t, err)

	_, err = exec.BindArguments(root, params, []plan.Argument{
		{Kind: plan.ArgNamed, Name: "depht", Expr: intLit(2)},
	})
	require.Error(t, err)
	assert.Equal(t, crusherr.ArgumentError, crusherr.Of(err))
}

// Breaking out of a for loop mid-stream must stop the stream's producer:
// every worker completes within bounded time, no goroutine is left blocked
// on a send nobody will receive. 2000 rows is far past any channel buffer.
func TestForBreakStopsStreamProducer(t *testing.T) {
	root, global := newRoot(t)
	baseline := runtime.NumGoroutine()

	innerBreak := block(job(cmd(ident("break"))))
	body := block(job(cmd(ident("if"), subst(job(cmd(ident("=="), ident("i"), intLit(7)))), innerBreak)))
	jl := jobList(job(cmd(ident("for"),
		ast.Assignment{Target: ident("i"), Op: ast.AssignSet, Value: subst(job(cmd(ident("seq"), intLit(2000))))},
		body,
	)))
	_, err := runWithDeadline(t, root, global, jl)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines did not settle: %d running, baseline %d", runtime.NumGoroutine(), baseline)
}

// A CanBlock command runs on a dedicated worker with its own panic
// boundary: a panic inside it surfaces as an InternalError instead of
// tearing the invoking thread down.
func TestBlockingCommandGetsWorkerWithPanicBoundary(t *testing.T) {
	root, global := newRoot(t)
	boomer := command.NewDescriptor("boomer").
		Summary("panics from a blocking body").
		CanBlock().
		Run(func(ctx *command.Context) (value.Value, error) {
			panic("kaboom")
		}).Build()
	require.NoError(t, root.Declare("boomer", value.Command{Callable: boomer}))

	_, err := run(t, root, global, jobList(job(cmd(ident("boomer")))))
	require.Error(t, err)
	assert.Equal(t, crusherr.InternalError, crusherr.Of(err))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestBlockingCommandReturnsValueThroughWorker(t *testing.T) {
	root, global := newRoot(t)
	slow := command.NewDescriptor("slowEcho").
		Summary("returns its argument after simulated blocking work").
		CanBlock().
		Param("x").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			time.Sleep(10 * time.Millisecond)
			v, _ := ctx.Args.Get("x")
			return v, nil
		}).Build()
	require.NoError(t, root.Declare("slowEcho", value.Command{Callable: slow}))

	v, err := run(t, root, global, jobList(job(cmd(ident("slowEcho"), intLit(11)))))
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(11), v)
}
