package tools

import (
	"context"

	"github.com/cortexai/opsagent/internal/arith"
)

// CalculatorTool evaluates arithmetic expressions.
func CalculatorTool() Tool {
	return Tool{
		Name:        "Calculator",
		Description: "Use to evaluate a mathematical expression. Example: '2 + 3 * 5'",
		Execute: func(_ context.Context, input string) (string, error) {
			v, err := arith.Eval(input)
			if err != nil {
				return "", Fail("evaluating expression", err)
			}
			return arith.Format(v), nil
		},
	}
}
