package structured

import (
	"errors"
	"fmt"
	"math"
)

// Tolerance is the allowed gap between a reported and a recomputed result.
const Tolerance = 0.0001

// CubeResult is the calculator agent's answer: the expression it evaluated
// and the value it claims.
type CubeResult struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// Validate re-evaluates Expression and rejects a Result that disagrees.
func (c CubeResult) Validate() error {
	if c.Expression == "" {
		return errors.New("expression is required")
	}
	want, err := Evaluate(c.Expression)
	if err != nil {
		return fmt.Errorf("expression %q: %w", c.Expression, err)
	}
	if math.Abs(want-c.Result) > Tolerance {
		return fmt.Errorf("result %s does not match %s = %s",
			FormatNumber(c.Result), c.Expression, FormatNumber(want))
	}
	return nil
}
