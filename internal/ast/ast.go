// Package ast defines the shape of the AST the execution core consumes. It
// is deliberately parser-free: the concrete surface grammar (lexer/parser)
// is an external collaborator; this package only fixes the node kinds that
// package plan lowers, a closed set of plain Go structs behind a
// marker-method interface.
package ast

import (
	"math/big"

	"github.com/crushshell/crush/internal/crusherr"
)

// Node is implemented by every AST node kind.
type Node interface {
	Span() crusherr.Span
	isNode()
}

type base struct{ Pos crusherr.Span }

func (b base) Span() crusherr.Span { return b.Pos }

// Identifier is a bare name reference, e.g. `x`, `global:var:set`.
type Identifier struct {
	base
	Name string
}

func (Identifier) isNode() {}

// NewIdentifier builds an Identifier node, for passes (such as package
// plan's control-form lowering) that synthesize a qualified name from an
// existing node's span.
func NewIdentifier(span crusherr.Span, name string) Identifier {
	return Identifier{base: base{Pos: span}, Name: name}
}

// StringLit is a string literal; Quoted distinguishes `"a b"` from a bare
// unquoted word the parser still classifies as a string.
type StringLit struct {
	base
	Value  string
	Quoted bool
}

func (StringLit) isNode() {}

// IntegerLit is an integer literal.
type IntegerLit struct {
	base
	Value *big.Int
}

func (IntegerLit) isNode() {}

// FloatLit is a floating point literal.
type FloatLit struct {
	base
	Value float64
}

func (FloatLit) isNode() {}

// GlobLit is a glob pattern literal.
type GlobLit struct {
	base
	Pattern string
}

func (GlobLit) isNode() {}

// RegexLit is a regex literal.
type RegexLit struct {
	base
	Source string
}

func (RegexLit) isNode() {}

// FileLit is a file-path literal, quoted or bare.
type FileLit struct {
	base
	Path   string
	Quoted bool
}

func (FileLit) isNode() {}

// GetAttr is member access: `node.name` / `node:name`.
type GetAttr struct {
	base
	Target Node
	Name   string
}

func (GetAttr) isNode() {}

// GetItem is subscripting: `node[index]`.
type GetItem struct {
	base
	Target Node
	Index  Node
}

func (GetItem) isNode() {}

// AssignOp distinguishes `=` (set) from `:=` (declare).
type AssignOp int

const (
	AssignSet     AssignOp = iota // a = v
	AssignDeclare                 // a := v
)

// Assignment is `target op value`.
type Assignment struct {
	base
	Target Node
	Op     AssignOp
	Value  Node
}

func (Assignment) isNode() {}

// UnaryOp enumerates the prefix operators and splat markers package plan
// lowers: logical not, list splat, dict splat, and the
// `--name`/`--name=value` switch marker.
type UnaryOp int

const (
	UnaryNot       UnaryOp = iota // !x
	UnarySplat                    // @x
	UnaryDictSplat                // @@x
	UnarySwitch                   // --name / --name=value
)

// Unary is a prefix-operator application.
type Unary struct {
	base
	Op      UnaryOp
	Operand Node
}

func (Unary) isNode() {}

// Substitution is `$(...)`: at compile time nothing runs; package exec binds
// it to a JobListDefinition argument.
type Substitution struct {
	base
	Body JobList
}

func (Substitution) isNode() {}

// Parameter is one closure parameter: a bare `x` (required), `x=default`
// (optional), `@rest` (Unnamed sink), `@@opts` (Named sink). Type holds the
// annotation expression when one is written; closure argument binding does
// not evaluate or check it, so every closure parameter accepts any type.
type Parameter struct {
	Name    string
	Type    *Node // optional type annotation expression
	Default Node  // optional default-value expression
	Unnamed bool
	Named   bool
}

// Closure is `{ params | body }`; it captures the current scope as its
// lexical parent at closure-creation.
type Closure struct {
	base
	Params []Parameter
	Body   JobList
}

func (Closure) isNode() {}

// Command is a single invocation: `expressions[0]` is the callee, the
// remainder are arguments.
type Command struct {
	Pos         crusherr.Span
	Expressions []Node
}

// Job is a pipeline of invocations: `inv | inv | inv`.
type Job struct {
	Pos      crusherr.Span
	Commands []Command
}

// JobList is a sequence of jobs, e.g. a closure body or a whole script.
type JobList struct {
	Pos  crusherr.Span
	Jobs []Job
}

// Binary infix/comparison/logical operators (`+ - * / < <= > >= == != and
// or =~ !~`) are NOT a distinct node kind: an invocation's first expression
// is its callee, which already gives commands the shape operator desugaring
// needs. The core therefore represents `a + b` as a Command{Expressions:
// [Identifier("+"), a, b]} exactly as the (external) parser would for any
// other invocation; package plan's operator desugaring recognizes a fixed
// set of operator identifiers in callee position and rewrites the Command
// into the corresponding method/function call instead of looking the
// operator up as an ordinary command name.
var OperatorSymbols = map[string]bool{
	"+": true, "-": true, "*": true, "/": true,
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
	"and": true, "or": true, "=~": true, "!~": true,
}
