package exec

import (
	"regexp"

	"github.com/crushshell/crush/internal/ast"
	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/plan"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// evalExpr evaluates a single ast.Node to a value.Value against callScope.
// No node kind here performs I/O; Substitution is the one exception, since
// `$(...)` is defined to run immediately at the point it is evaluated.
func evalExpr(callScope *scope.Scope, n ast.Node) (value.Value, error) {
	switch node := n.(type) {
	case ast.Identifier:
		return resolveName(callScope, node.Name)
	case ast.StringLit:
		return value.Str(node.Value), nil
	case ast.IntegerLit:
		return value.Int{V: node.Value}, nil
	case ast.FloatLit:
		return value.Float(node.Value), nil
	case ast.GlobLit:
		return value.Glob{Pattern: node.Pattern}, nil
	case ast.RegexLit:
		compiled, err := regexp.Compile(node.Source)
		if err != nil {
			return nil, crusherr.Wrap(crusherr.CompileError, err, "invalid regex %q", node.Source)
		}
		return value.Regex{Source: node.Source, Compiled: compiled}, nil
	case ast.FileLit:
		return value.File{Path: node.Path}, nil
	case ast.GetAttr:
		target, err := evalExpr(callScope, node.Target)
		if err != nil {
			return nil, err
		}
		fv, found, err := value.FieldLookup(target, node.Name)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, crusherr.New(crusherr.CompileError, "no such field %q", node.Name)
		}
		return value.Bind(fv, target), nil
	case ast.GetItem:
		target, err := evalExpr(callScope, node.Target)
		if err != nil {
			return nil, err
		}
		idx, err := evalExpr(callScope, node.Index)
		if err != nil {
			return nil, err
		}
		return evalGetItem(target, idx)
	case ast.Assignment:
		return runAssignment(callScope, node)
	case ast.Unary:
		return evalUnary(callScope, node)
	case ast.Closure:
		lowered, err := plan.Lower(node.Body)
		if err != nil {
			return nil, err
		}
		cl := command.NewClosure("", node.Params, lowered, callScope)
		return value.Command{Callable: cl}, nil
	case ast.Substitution:
		lowered, err := plan.Lower(node.Body)
		if err != nil {
			return nil, err
		}
		sub := callScope.CreateChild(callScope, scope.Block)
		return RunJobs(sub, lowered.Jobs, nil, nil, globalOf(callScope))
	default:
		return nil, crusherr.New(crusherr.InternalError, "unhandled expression node %T", n)
	}
}

func evalUnary(callScope *scope.Scope, n ast.Unary) (value.Value, error) {
	v, err := evalExpr(callScope, n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.UnaryNot:
		b, ok := v.(value.Bool)
		if !ok {
			return nil, crusherr.New(crusherr.TypeError, "! requires a bool operand, got %s", v.Type())
		}
		return value.Bool(!bool(b)), nil
	default:
		// Splat/DictSplat/Switch markers are only meaningful as argument
		// shapes; package plan strips them out of argument position before
		// they reach here (see plan.lowerArguments). Evaluated standalone,
		// the marked expression's own value is returned.
		return v, nil
	}
}

// evalGetItem implements subscripting for the indexable container kinds:
// List (integer index), Dict (key lookup), Struct
// (string-keyed field access), Table (integer row index, yielding a Struct
// over its columns).
func evalGetItem(target, idx value.Value) (value.Value, error) {
	switch t := target.(type) {
	case value.List:
		i, ok := idx.(value.Int)
		if !ok {
			return nil, crusherr.New(crusherr.TypeError, "list index must be an integer")
		}
		n := int(i.V.Int64())
		v, ok := t.Get(n)
		if !ok {
			return nil, crusherr.New(crusherr.DataError, "list index %d out of range", n)
		}
		return v, nil
	case value.Dict:
		v, ok, err := t.Get(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, crusherr.New(crusherr.DataError, "no such key in dict")
		}
		return v, nil
	case value.Table:
		i, ok := idx.(value.Int)
		if !ok {
			return nil, crusherr.New(crusherr.TypeError, "table index must be an integer")
		}
		n := int(i.V.Int64())
		if n < 0 || n >= len(t.Rows) {
			return nil, crusherr.New(crusherr.DataError, "table row %d out of range", n)
		}
		row := t.Rows[n]
		s := value.NewStruct(nil)
		for i, col := range t.Columns {
			s.Set(col.Name, row[i])
		}
		return s, nil
	case value.Struct:
		name, ok := idx.(value.Str)
		if !ok {
			return nil, crusherr.New(crusherr.TypeError, "struct index must be a string")
		}
		v, found := t.Get(string(name))
		if !found {
			return nil, crusherr.New(crusherr.CompileError, "no such field %q", string(name))
		}
		return v, nil
	default:
		return nil, crusherr.New(crusherr.TypeError, "value of type %s is not indexable", target.Type())
	}
}
