package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/registry"
	"github.com/expr-lang/expr"
)

// CalculatorToolName is the name the model uses to request a calculation.
const CalculatorToolName = "calculator"

// CalculatorDefinition describes the calculator tool to the model.
func CalculatorDefinition() domain.Tool {
	return domain.Tool{
		Name: CalculatorToolName,
		Description: "Evaluates a mathematical expression (e.g. '200 * 1.5'). " +
			"Use this when you need to crunch numbers found in research.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Arithmetic expression using + - * / % ** and parentheses (% takes integers).",
				},
			},
			"required": []string{"expression"},
		},
	}
}

// Calculator evaluates the "expression" argument. Evaluation problems are
// reported as content so the model can correct the expression.
func Calculator(_ context.Context, args map[string]any) (string, error) {
	var in struct {
		Expression string `mapstructure:"expression"`
	}
	if err := registry.Decode(args, &in); err != nil {
		return "", err
	}
	v, err := Evaluate(in.Expression)
	if err != nil {
		return fmt.Sprintf("Error calculating: %v", err), nil
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

// Evaluate computes an arithmetic expression.
//
// Supported: numbers (with optional exponent), parentheses, unary + and -,
// the binary operators + - * / % and ** or ^ (right associative, binds tighter
// than unary minus), the builtins abs, ceil, floor, round, min, max and the
// functions sqrt, exp, log, log10, sin, cos, tan. The environment holds nothing
// but these functions, so an expression can only compute a number.
func Evaluate(input string) (v float64, err error) {
	if strings.TrimSpace(input) == "" {
		return 0, errors.New("expression is empty")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	program, err := expr.Compile(input, calculatorOptions...)
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(program, map[string]any{})
	if err != nil {
		return 0, err
	}
	v, ok := toFloat(out)
	if !ok {
		return 0, fmt.Errorf("result %v is not a number", out)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("result is not a finite number (division by zero?)")
	}
	return v, nil
}

var calculatorOptions = []expr.Option{
	expr.Env(map[string]any{}),
	expr.DisableAllBuiltins(),
	expr.EnableBuiltin("abs"),
	expr.EnableBuiltin("ceil"),
	expr.EnableBuiltin("floor"),
	expr.EnableBuiltin("round"),
	expr.EnableBuiltin("min"),
	expr.EnableBuiltin("max"),
	mathFunc("sqrt", math.Sqrt),
	mathFunc("exp", math.Exp),
	mathFunc("log", math.Log),
	mathFunc("log10", math.Log10),
	mathFunc("sin", math.Sin),
	mathFunc("cos", math.Cos),
	mathFunc("tan", math.Tan),
}

func mathFunc(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s takes exactly one argument", name)
		}
		x, ok := toFloat(params[0])
		if !ok {
			return nil, fmt.Errorf("%s: argument %v is not a number", name, params[0])
		}
		return fn(x), nil
	})
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
