// Package plan lowers internal/ast trees into the shape internal/exec runs. It
// performs pipeline splitting, argument classification, assignment rewriting,
// operator desugaring, control-form lowering, `$(...)` substitution packaging,
// and closure-literal capture preparation. The pass is purely structural: it
// produces a shape the executor later walks, with no resolution or evaluation
// performed during the build.
package plan

import (
	"github.com/crushshell/crush/internal/ast"
	"github.com/crushshell/crush/internal/crusherr"
)

// ArgKind classifies a lowered argument.
type ArgKind int

const (
	ArgPositional ArgKind = iota
	ArgNamed              // name=value
	ArgSwitch             // --name / --name=value
	ArgSplat              // @list
	ArgDictSplat          // @@dict
)

func (k ArgKind) String() string {
	switch k {
	case ArgPositional:
		return "positional"
	case ArgNamed:
		return "named"
	case ArgSwitch:
		return "switch"
	case ArgSplat:
		return "splat"
	case ArgDictSplat:
		return "dict-splat"
	default:
		return "unknown"
	}
}

// Argument is one lowered argument of an Invocation.
type Argument struct {
	Kind ArgKind
	Name string   // set for ArgNamed/ArgSwitch
	Expr ast.Node // the value expression; nil for a bare --switch
}

// Invocation is one lowered command call: Callee resolved at exec time
// through the current scope, Args already classified.
type Invocation struct {
	Pos    ast.Node // the command's first expression, kept for span/error reporting
	Callee ast.Node
	Args   []Argument
}

// Job is a lowered pipeline: Invocations[0] feeds Invocations[1], etc.
type Job struct {
	Invocations []Invocation
}

// Plan is a lowered JobList: a sequence of independent jobs run in order,
// each one's result discarded except the last.
type Plan struct {
	Jobs []Job
}

// arithmeticMethods maps `+ - * /` to the method name they desugar to on the
// left operand.
var arithmeticMethods = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div",
}

// comparisonFuncs maps `< <= > >= == !=` to the global:comp function they
// desugar to.
var comparisonFuncs = map[string]string{
	"<": "lt", "<=": "lte", ">": "gt", ">=": "gte", "==": "eq", "!=": "neq",
}

// condFuncs maps `and or` to the global:cond function they desugar to.
var condFuncs = map[string]string{"and": "and", "or": "or"}

// matchMethods maps `=~ !~` to the method name they desugar to on the right
// operand (`r:match l`, `r:not_match l`).
var matchMethods = map[string]string{"=~": "match", "!~": "not_match"}

// controlForms maps a bare control-flow callee name to its qualified
// builtin command for the forms with no special argument shape.
// `if`/`while`/`for` need their own lowering (the condition/iterator arguments
// need reshaping) and are handled directly in lowerCommand.
var controlForms = map[string]string{
	"loop":     "global:control:loop",
	"break":    "global:control:break",
	"continue": "global:control:continue",
	"return":   "global:control:return",
	"exit":     "global:control:exit",
}

// Lower lowers a top-level job list. Errors are
// crusherr.CompileError.
func Lower(jl ast.JobList) (*Plan, error) {
	p := &Plan{}
	for _, j := range jl.Jobs {
		lj, err := lowerJob(j)
		if err != nil {
			return nil, err
		}
		p.Jobs = append(p.Jobs, lj)
	}
	return p, nil
}

func lowerJob(j ast.Job) (Job, error) {
	out := Job{}
	for _, cmd := range j.Commands {
		inv, err := lowerCommand(cmd)
		if err != nil {
			return Job{}, err
		}
		out.Invocations = append(out.Invocations, inv)
	}
	return out, nil
}

// lowerCommand classifies expressions[0] as the callee and the rest as
// arguments, then applies operator desugaring and control-form lowering.
func lowerCommand(cmd ast.Command) (Invocation, error) {
	if len(cmd.Expressions) == 0 {
		return Invocation{}, crusherr.New(crusherr.CompileError, "empty command")
	}
	head := cmd.Expressions[0]
	rest := cmd.Expressions[1:]

	if id, ok := head.(ast.Identifier); ok {
		switch {
		case id.Name == "if":
			return lowerIf(cmd, rest)
		case id.Name == "while":
			return lowerWhile(cmd, rest)
		case id.Name == "for":
			return lowerFor(cmd, rest)
		default:
			if method, isOp := arithmeticMethods[id.Name]; isOp {
				return lowerLeftMethodOp(cmd, method, rest)
			}
			if fn, isOp := comparisonFuncs[id.Name]; isOp {
				return lowerFuncOp(cmd, "global:comp:"+fn, rest)
			}
			if fn, isOp := condFuncs[id.Name]; isOp {
				return lowerFuncOp(cmd, "global:cond:"+fn, rest)
			}
			if method, isOp := matchMethods[id.Name]; isOp {
				return lowerRightMethodOp(cmd, method, rest)
			}
			if qualified, isControl := controlForms[id.Name]; isControl {
				head = ast.NewIdentifier(id.Span(), qualified)
			}
		}
	}

	args, err := lowerArguments(rest)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{Pos: head, Callee: head, Args: args}, nil
}

// lowerLeftMethodOp rewrites `a OP b` into the method-call Invocation
// `a:method(b)`.
func lowerLeftMethodOp(cmd ast.Command, method string, rest []ast.Node) (Invocation, error) {
	if len(rest) != 2 {
		return Invocation{}, crusherr.New(crusherr.CompileError, "operator %q needs exactly two operands", method)
	}
	lhs, rhs := rest[0], rest[1]
	callee := ast.GetAttr{Target: lhs, Name: method}
	args, err := lowerArguments([]ast.Node{rhs})
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{Pos: cmd.Expressions[0], Callee: callee, Args: args}, nil
}

// lowerRightMethodOp rewrites `a OP b` into the method-call Invocation
// `b:method(a)`.
func lowerRightMethodOp(cmd ast.Command, method string, rest []ast.Node) (Invocation, error) {
	if len(rest) != 2 {
		return Invocation{}, crusherr.New(crusherr.CompileError, "operator %q needs exactly two operands", method)
	}
	lhs, rhs := rest[0], rest[1]
	callee := ast.GetAttr{Target: rhs, Name: method}
	args, err := lowerArguments([]ast.Node{lhs})
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{Pos: cmd.Expressions[0], Callee: callee, Args: args}, nil
}

// lowerFuncOp rewrites `a OP b` into a plain function-call Invocation
// `qualified(a, b)`.
func lowerFuncOp(cmd ast.Command, qualified string, rest []ast.Node) (Invocation, error) {
	if len(rest) != 2 {
		return Invocation{}, crusherr.New(crusherr.CompileError, "operator %q needs exactly two operands", qualified)
	}
	callee := ast.NewIdentifier(cmd.Expressions[0].Span(), qualified)
	args, err := lowerArguments(rest)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{Pos: cmd.Expressions[0], Callee: callee, Args: args}, nil
}

// wrapThunk packages a bare expression as a zero-parameter closure literal
// over a single-command job evaluating it, the shape `if`/`while`'s
// condition argument takes: `global:control:if` decides whether
// to invoke it at all, giving the source language short-circuit evaluation
// instead of eagerly evaluating both branches.
func wrapThunk(expr ast.Node) ast.Closure {
	cmd := ast.Command{Pos: expr.Span(), Expressions: []ast.Node{expr}}
	body := ast.JobList{Pos: expr.Span(), Jobs: []ast.Job{{Pos: expr.Span(), Commands: []ast.Command{cmd}}}}
	return ast.Closure{Body: body}
}

// lowerIf lowers `if cond { T } else { F }` to `global:control:if { cond }
// { T } { F }`; the `else` clause is optional.
func lowerIf(cmd ast.Command, rest []ast.Node) (Invocation, error) {
	if len(rest) < 2 {
		return Invocation{}, crusherr.New(crusherr.CompileError, "if requires a condition and a body")
	}
	cond, thenBody := rest[0], rest[1]
	args := []Argument{
		{Kind: ArgPositional, Expr: wrapThunk(cond)},
		{Kind: ArgPositional, Expr: thenBody},
	}
	if len(rest) >= 4 {
		if id, ok := rest[2].(ast.Identifier); !ok || id.Name != "else" {
			return Invocation{}, crusherr.New(crusherr.CompileError, "expected 'else' after if body")
		}
		args = append(args, Argument{Kind: ArgPositional, Expr: rest[3]})
	}
	callee := ast.NewIdentifier(cmd.Expressions[0].Span(), "global:control:if")
	return Invocation{Pos: cmd.Expressions[0], Callee: callee, Args: args}, nil
}

// lowerWhile lowers `while cond { B }` to `global:control:while { cond }
// { B }`.
func lowerWhile(cmd ast.Command, rest []ast.Node) (Invocation, error) {
	if len(rest) != 2 {
		return Invocation{}, crusherr.New(crusherr.CompileError, "while requires a condition and a body")
	}
	args := []Argument{
		{Kind: ArgPositional, Expr: wrapThunk(rest[0])},
		{Kind: ArgPositional, Expr: rest[1]},
	}
	callee := ast.NewIdentifier(cmd.Expressions[0].Span(), "global:control:while")
	return Invocation{Pos: cmd.Expressions[0], Callee: callee, Args: args}, nil
}

// lowerFor lowers `for x = iter { B }` to `global:control:for x=iter { B }`:
// the loop variable's name and iterator expression become a named argument,
// the body stays positional.
func lowerFor(cmd ast.Command, rest []ast.Node) (Invocation, error) {
	if len(rest) != 2 {
		return Invocation{}, crusherr.New(crusherr.CompileError, "for requires 'x = iter' and a body")
	}
	asn, ok := rest[0].(ast.Assignment)
	if !ok {
		return Invocation{}, crusherr.New(crusherr.CompileError, "for requires 'x = iter'")
	}
	id, ok := asn.Target.(ast.Identifier)
	if !ok {
		return Invocation{}, crusherr.New(crusherr.CompileError, "for's loop variable must be a bare name")
	}
	args := []Argument{
		{Kind: ArgNamed, Name: id.Name, Expr: asn.Value},
		{Kind: ArgPositional, Expr: rest[1]},
	}
	callee := ast.NewIdentifier(cmd.Expressions[0].Span(), "global:control:for")
	return Invocation{Pos: cmd.Expressions[0], Callee: callee, Args: args}, nil
}

// lowerArguments classifies each remaining command expression:
// `name=value`/`name:=value` -> named, `--name`/`--name=value` -> switch, `@x`
// -> splat, `@@x` -> dict-splat, everything else -> positional.
func lowerArguments(exprs []ast.Node) ([]Argument, error) {
	args := make([]Argument, 0, len(exprs))
	for _, e := range exprs {
		switch n := e.(type) {
		case ast.Assignment:
			id, ok := n.Target.(ast.Identifier)
			if !ok {
				return nil, crusherr.New(crusherr.CompileError, "named argument target must be a bare name")
			}
			args = append(args, Argument{Kind: ArgNamed, Name: id.Name, Expr: n.Value})
		case ast.Unary:
			switch n.Op {
			case ast.UnarySwitch:
				switch target := n.Operand.(type) {
				case ast.Identifier:
					args = append(args, Argument{Kind: ArgSwitch, Name: target.Name})
				case ast.Assignment:
					id, ok := target.Target.(ast.Identifier)
					if !ok {
						return nil, crusherr.New(crusherr.CompileError, "switch argument target must be a bare name")
					}
					args = append(args, Argument{Kind: ArgSwitch, Name: id.Name, Expr: target.Value})
				default:
					return nil, crusherr.New(crusherr.CompileError, "malformed switch argument")
				}
			case ast.UnarySplat:
				args = append(args, Argument{Kind: ArgSplat, Expr: n.Operand})
			case ast.UnaryDictSplat:
				args = append(args, Argument{Kind: ArgDictSplat, Expr: n.Operand})
			case ast.UnaryNot:
				args = append(args, Argument{Kind: ArgPositional, Expr: n})
			}
		default:
			args = append(args, Argument{Kind: ArgPositional, Expr: e})
		}
	}
	return args, nil
}
