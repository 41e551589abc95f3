package structured

import (
	"context"
	"fmt"

	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/retry"
)

// CalculatorInstructions is the calculator agent's built-in system prompt.
const CalculatorInstructions = `You are a precise calculator. Translate the user's question into a single
arithmetic expression using + - * / % ** and the functions cube(x), sqrt(x)
and abs(x). You may call the calculate tool to check your work.
Reply with JSON only: {"expression": "<expression>", "result": <number>}`

// Asker answers a single message.
type Asker interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Calculator asks a model for a CubeResult and only accepts answers whose
// expression recomputes to the claimed result.
type Calculator struct {
	agent   Asker
	history *History
	policy  retry.Policy
	log     *logging.Logger
}

// NewCalculator wires a calculator. A nil history disables recording.
func NewCalculator(agent Asker, history *History, policy retry.Policy, log *logging.Logger) *Calculator {
	return &Calculator{agent: agent, history: history, policy: policy, log: log.Sub("calculator")}
}

// Solve answers question and records the result in the history.
func (c *Calculator) Solve(ctx context.Context, question string) (CubeResult, error) {
	res, err := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) (CubeResult, error) {
		reply, err := c.agent.Ask(ctx, question)
		if err != nil {
			return CubeResult{}, err
		}
		out, err := ParseJSON[CubeResult](reply)
		if err != nil {
			c.log.Warn().Int("attempt", attempt+1).Err(err).Msg("rejected calculator answer")
			return CubeResult{}, err
		}
		return out, nil
	})
	if err != nil {
		return CubeResult{}, fmt.Errorf("calculate %q: %w", question, err)
	}

	if c.history != nil {
		c.history.Add(Entry{Question: question, Expression: res.Expression, Result: res.Result})
		if err := c.history.Save(); err != nil {
			c.log.Warn().Err(err).Msg("could not save history")
		}
	}
	return res, nil
}

// History returns the calculator's history, possibly nil.
func (c *Calculator) History() *History { return c.history }
