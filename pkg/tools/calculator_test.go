package tools_test

import (
	"context"
	"testing"

	"github.com/aretw0/quill/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"200 * 1.5", 300},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"2 ** 10", 1024},
		{"2 ^ 3", 8},
		{"2 ** 3 ** 2", 512},
		{"-2 ** 2", -4},
		{"7 % 3", 1},
		{"10 / 4", 2.5},
		{"1.5e3 - 500", 1000},
		{"sqrt(16) + abs(-2)", 6},
		{"max(2, 7) - floor(1.9)", 6},
		{"-(3 - 5)", 2},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := tools.Evaluate(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	for _, expr := range []string{"", "  ", "1 +", "(1 + 2", "1 / 0", "5 % 0", "foo(1)", "2 # 3", "1 2", "sqrt 4", `"a" + "b"`, "len([1, 2])", "x * 2"} {
		t.Run(expr, func(t *testing.T) {
			_, err := tools.Evaluate(expr)
			assert.Error(t, err)
		})
	}
}

func TestCalculator_Handler(t *testing.T) {
	out, err := tools.Calculator(context.Background(), map[string]any{"expression": "200 * 1.5"})
	require.NoError(t, err)
	assert.Equal(t, "300", out)

	out, err = tools.Calculator(context.Background(), map[string]any{"expression": "1 / 0"})
	require.NoError(t, err, "evaluation problems are content, not errors")
	assert.Equal(t, "Error calculating: result is not a finite number (division by zero?)", out)
}
