package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/retry"
	"github.com/soyeahso/agentdesk/internal/structured"
	"github.com/spf13/cobra"
)

func newCalcCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "calc [question...]",
		Short: "Answer arithmetic questions with a self-checking calculator agent",
		Long: `Ask the calculator a question. Without arguments an interactive session starts;
type "history" to see past answers, "clear" to forget them and "quit" to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if model == "" {
				model = a.cfg.Agents.Defaults.Model
			}
			client, err := a.client(model)
			if err != nil {
				return err
			}
			runner := agent.NewRunner(agent.Config{
				AgentID:      "calculator",
				AgentName:    "Calculator",
				Instructions: structured.CalculatorInstructions,
				Model:        model,
				MaxTokens:    a.cfg.Agents.Defaults.MaxTokens,
			}, client, nil, a.tools.Subset([]string{"calculate"}, log), log, agent.WithHooks(a.hooks))

			history := structured.NewHistory(paths.History())
			if err := history.Load(); err != nil {
				log.Warn().Err(err).Msg("could not load calculator history")
			}
			calc := structured.NewCalculator(runner, history, retry.Default(), log)

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				return solve(ctx, out, calc, strings.Join(args, " "))
			}

			fmt.Fprintln(out, `Calculator ready. Ask a question, or type "history", "clear" or "quit".`)
			return repl(ctx, cmd.InOrStdin(), out, "calc> ", func(ctx context.Context, line string) error {
				switch strings.ToLower(line) {
				case "history":
					printHistory(out, calc.History())
					return nil
				case "clear":
					calc.History().Clear()
					fmt.Fprintln(out, "History cleared")
					return calc.History().Save()
				}
				return solve(ctx, out, calc, line)
			})
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model to use (default from config)")
	return cmd
}

func solve(ctx context.Context, out io.Writer, calc *structured.Calculator, question string) error {
	res, err := calc.Solve(ctx, question)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s = %s\n", res.Expression, structured.FormatNumber(res.Result))
	return nil
}

func printHistory(out io.Writer, h *structured.History) {
	entries := h.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No calculations yet")
		return
	}
	for i, e := range entries {
		fmt.Fprintf(out, "%2d. %s = %s\n", i+1, e.Expression, structured.FormatNumber(e.Result))
	}
}
