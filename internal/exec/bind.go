package exec

import (
	"encoding/json"
	"strings"

	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/plan"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// flatArg is one fully-expanded argument: splats have already been unrolled
// into individual positional/named entries by the time it reaches binding.
type flatArg struct {
	named bool
	name  string
	value value.Value
}

// BindArguments is the executor's hottest path: resolve every plan.Argument
// to a value.Value, expand splats, then match the result against params
// positionally/by-name, filling sink parameters and applying defaults. The
// dict-splat (`@@opts`) sink is validated through a compiled JSON Schema,
// the one place an ArgumentDescription's AllowedValues is naturally
// expressed as a schema rather than a flat switch.
func BindArguments(callScope *scope.Scope, params []command.ArgumentDescription, args []plan.Argument) (*command.BoundArgs, error) {
	flat, err := expandArgs(callScope, args)
	if err != nil {
		return nil, err
	}

	var positional []value.Value
	named := map[string]value.Value{}
	for _, f := range flat {
		if f.named {
			named[f.name] = f.value
		} else {
			positional = append(positional, f.value)
		}
	}

	bound := command.NewBoundArgs()
	var unnamedSink, namedSink *command.ArgumentDescription
	posIdx := 0

	for i := range params {
		p := &params[i]
		if p.Unnamed {
			unnamedSink = p
			continue
		}
		if p.Named {
			namedSink = p
			continue
		}
		if v, ok := named[p.Name]; ok {
			delete(named, p.Name)
			if err := checkParam(*p, v); err != nil {
				return nil, err
			}
			bound.Set(p.Name, v)
			continue
		}
		if posIdx < len(positional) {
			v := positional[posIdx]
			posIdx++
			if err := checkParam(*p, v); err != nil {
				return nil, err
			}
			bound.Set(p.Name, v)
			continue
		}
		if !p.Required {
			if p.Default != nil {
				bound.Set(p.Name, p.Default)
			}
			continue
		}
		return nil, crusherr.New(crusherr.ArgumentError, "missing required argument %q", p.Name)
	}

	if posIdx < len(positional) {
		rest := positional[posIdx:]
		if unnamedSink == nil {
			return nil, crusherr.New(crusherr.ArgumentError, "too many positional arguments")
		}
		list := value.NewList(value.Any, rest)
		bound.SetUnnamed(list)
	}

	if len(named) > 0 {
		if namedSink == nil {
			for k := range named {
				return nil, crusherr.New(crusherr.ArgumentError, "unknown named argument %q", k)
			}
		}
		if err := validateNamedSink(*namedSink, named); err != nil {
			return nil, err
		}
		dict := value.NewDict(value.TypeString, value.Any)
		for k, v := range named {
			_ = dict.Set(value.Str(k), v)
		}
		bound.SetNamed(dict)
	}

	return bound, nil
}

// expandArgs evaluates every plan.Argument and unrolls splats: `@list`
// contributes one positional entry per list item, `@@dict` one named entry per
// dict entry (keyed by its stringified key).
func expandArgs(callScope *scope.Scope, args []plan.Argument) ([]flatArg, error) {
	var out []flatArg
	for _, a := range args {
		switch a.Kind {
		case plan.ArgPositional:
			v, err := evalExpr(callScope, a.Expr)
			if err != nil {
				return nil, err
			}
			out = append(out, flatArg{value: v})
		case plan.ArgNamed:
			v, err := evalExpr(callScope, a.Expr)
			if err != nil {
				return nil, err
			}
			out = append(out, flatArg{named: true, name: a.Name, value: v})
		case plan.ArgSwitch:
			if a.Expr == nil {
				out = append(out, flatArg{named: true, name: a.Name, value: value.Bool(true)})
				continue
			}
			v, err := evalExpr(callScope, a.Expr)
			if err != nil {
				return nil, err
			}
			out = append(out, flatArg{named: true, name: a.Name, value: v})
		case plan.ArgSplat:
			v, err := evalExpr(callScope, a.Expr)
			if err != nil {
				return nil, err
			}
			list, ok := v.(value.List)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "@ splat requires a list, got %s", v.Type())
			}
			for _, item := range list.Items() {
				out = append(out, flatArg{value: item})
			}
		case plan.ArgDictSplat:
			v, err := evalExpr(callScope, a.Expr)
			if err != nil {
				return nil, err
			}
			dict, ok := v.(value.Dict)
			if !ok {
				return nil, crusherr.New(crusherr.TypeError, "@@ splat requires a dict, got %s", v.Type())
			}
			for _, e := range dict.Entries() {
				key, err := value.Render(e.Key)
				if err != nil {
					return nil, err
				}
				out = append(out, flatArg{named: true, name: key, value: e.Val})
			}
		}
	}
	return out, nil
}

func checkParam(p command.ArgumentDescription, v value.Value) error {
	if p.Type.Kind == value.KindEmpty && p.Type.Element == nil && p.Type.Key == nil && p.Type.Columns == nil {
		// Zero value: no type declared for this parameter, skip the check.
		return checkAllowed(p, v)
	}
	if !value.CompatibleWith(v.Type(), p.Type) {
		return crusherr.New(crusherr.TypeError, "argument %q expects %s, got %s", p.Name, p.Type, v.Type())
	}
	return checkAllowed(p, v)
}

func checkAllowed(p command.ArgumentDescription, v value.Value) error {
	if len(p.AllowedValues) == 0 {
		return nil
	}
	for _, allowed := range p.AllowedValues {
		eq, err := value.Eq(v, allowed)
		if err == nil && eq {
			return nil
		}
	}
	return crusherr.New(crusherr.ArgumentError, "argument %q: value not in allowed set", p.Name)
}

// validateNamedSink checks the collected dict-splat entries against a
// JSON Schema built from the sink's AllowedValues (interpreted as the set
// of permitted option names) when one was declared, so free-form `@@opts`
// bags get structural validation instead of a hand-rolled key check.
func validateNamedSink(sink command.ArgumentDescription, named map[string]value.Value) error {
	if len(sink.AllowedValues) == 0 {
		return nil
	}
	allowedNames := make([]string, 0, len(sink.AllowedValues))
	for _, av := range sink.AllowedValues {
		if s, ok := av.(value.Str); ok {
			allowedNames = append(allowedNames, string(s))
		}
	}
	if len(allowedNames) == 0 {
		return nil
	}

	schemaDoc := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]any{},
	}
	props := schemaDoc["properties"].(map[string]any)
	for _, name := range allowedNames {
		props[name] = map[string]any{}
	}
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return crusherr.Wrap(crusherr.InternalError, err, "building option schema")
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema://opts.json", strings.NewReader(string(raw))); err != nil {
		return crusherr.Wrap(crusherr.InternalError, err, "compiling option schema")
	}
	schema, err := compiler.Compile("schema://opts.json")
	if err != nil {
		return crusherr.Wrap(crusherr.InternalError, err, "compiling option schema")
	}

	instance := make(map[string]any, len(named))
	for k := range named {
		instance[k] = true
	}
	if err := schema.Validate(instance); err != nil {
		return crusherr.Wrap(crusherr.ArgumentError, err, "invalid option set for %q", sink.Name)
	}
	return nil
}
