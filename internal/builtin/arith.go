package builtin

import (
	"math/big"

	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// registerArithmeticMethods installs Integer/Float "add"/"sub"/"mul"/"div",
// the methods `+ - * /` desugar to on the left operand. Mixed Integer/Float
// operands promote to Float; same-kind Integer division truncates toward zero
// via big.Int.Quo.
func registerArithmeticMethods() {
	ops := map[string]struct {
		ints   func(a, b *big.Int) (*big.Int, error)
		floats func(a, b float64) (float64, error)
	}{
		"add": {
			ints:   func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Add(a, b), nil },
			floats: func(a, b float64) (float64, error) { return a + b, nil },
		},
		"sub": {
			ints:   func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Sub(a, b), nil },
			floats: func(a, b float64) (float64, error) { return a - b, nil },
		},
		"mul": {
			ints:   func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Mul(a, b), nil },
			floats: func(a, b float64) (float64, error) { return a * b, nil },
		},
		"div": {
			ints: func(a, b *big.Int) (*big.Int, error) {
				if b.Sign() == 0 {
					return nil, crusherr.New(crusherr.DataError, "division by zero")
				}
				return new(big.Int).Quo(a, b), nil
			},
			floats: func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, crusherr.New(crusherr.DataError, "division by zero")
				}
				return a / b, nil
			},
		},
	}

	for name, op := range ops {
		op := op
		desc := command.NewDescriptor("__arith:" + name).
			Summary("arithmetic " + name).
			Param("other").OfType(value.Any).Done().
			Run(func(ctx *command.Context) (value.Value, error) {
				other := argVal(ctx.Args, "other")
				lf, lIsFloat, err := numericOperand(ctx.This)
				if err != nil {
					return nil, err
				}
				rf, rIsFloat, err := numericOperand(other)
				if err != nil {
					return nil, err
				}
				if !lIsFloat && !rIsFloat {
					li := ctx.This.(value.Int)
					ri := other.(value.Int)
					r, err := op.ints(li.V, ri.V)
					if err != nil {
						return nil, err
					}
					if r.Sign() == 0 {
						// Same representation as value.NewInt(0).
						r = new(big.Int)
					}
					return value.Int{V: r}, nil
				}
				r, err := op.floats(lf, rf)
				if err != nil {
					return nil, err
				}
				return value.Float(r), nil
			}).Build()
		value.RegisterMethod(value.KindInteger, name, desc)
		value.RegisterMethod(value.KindFloat, name, desc)
	}
}

// numericOperand reads v as a float64 for mixed Integer/Float arithmetic,
// reporting whether v was a Float (so the caller can stay in big.Int
// arithmetic when both operands are Integer).
func numericOperand(v value.Value) (f float64, isFloat bool, err error) {
	switch x := v.(type) {
	case value.Int:
		bf := new(big.Float).SetInt(x.V)
		out, _ := bf.Float64()
		return out, false, nil
	case value.Float:
		return float64(x), true, nil
	default:
		return 0, false, crusherr.New(crusherr.TypeError, "expected a number, got %s", v.Type())
	}
}

// registerMath installs global:math:{abs,min,max}, small numeric helpers
// with no natural operator spelling.
func registerMath(l *scope.Loader) error {
	absCmd := command.NewDescriptor("global:math:abs").
		Summary("absolute value").
		Param("x").OfType(value.Any).Done().
		Run(func(ctx *command.Context) (value.Value, error) {
			switch x := argVal(ctx.Args, "x").(type) {
			case value.Int:
				return value.Int{V: new(big.Int).Abs(x.V)}, nil
			case value.Float:
				if x < 0 {
					return -x, nil
				}
				return x, nil
			default:
				return nil, crusherr.New(crusherr.TypeError, "abs requires a number, got %s", x.Type())
			}
		}).Build()

	minCmd := command.NewDescriptor("global:math:min").
		Summary("smaller of two comparable values").
		Param("a").OfType(value.Any).Done().
		Param("b").OfType(value.Any).Done().
		Run(minMaxRun(func(c int) bool { return c <= 0 })).Build()

	maxCmd := command.NewDescriptor("global:math:max").
		Summary("larger of two comparable values").
		Param("a").OfType(value.Any).Done().
		Param("b").OfType(value.Any).Done().
		Run(minMaxRun(func(c int) bool { return c >= 0 })).Build()

	for _, d := range []*command.Descriptor{absCmd, minCmd, maxCmd} {
		name := d.Path[len("global:math:"):]
		if err := l.Declare(name, value.Command{Callable: d}); err != nil {
			return err
		}
	}
	return nil
}

func minMaxRun(keepLeft func(cmp int) bool) command.Func {
	return func(ctx *command.Context) (value.Value, error) {
		a, b := argVal(ctx.Args, "a"), argVal(ctx.Args, "b")
		c, err := value.Compare(a, b)
		if err != nil {
			return nil, err
		}
		if keepLeft(c) {
			return a, nil
		}
		return b, nil
	}
}
