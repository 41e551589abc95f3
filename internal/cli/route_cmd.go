package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/agentdesk/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <query...>",
		Short: "Decide which category or agent should answer a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			d := a.router().Route(ctx, strings.Join(args, " "))
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}

func newParallelCmd() *cobra.Command {
	var (
		agents []string
		custom []string
	)

	cmd := &cobra.Command{
		Use:   "parallel <message...>",
		Short: "Ask several agents at once",
		Long: `Ask several agents the same message concurrently. Use --agent for each agent,
or --task agent=message to give one agent its own message.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := parallelTasks(agents, custom)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.requireOrchestrator()
			if err != nil {
				return err
			}
			res, err := o.ParallelExecution(ctx, tasks, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringSliceVar(&agents, "agent", nil, "agent to ask (repeatable)")
	cmd.Flags().StringArrayVar(&custom, "task", nil, "agent=message pair (repeatable)")
	return cmd
}

// parallelTasks turns --agent names and --task agent=message pairs into
// tasks, in that order.
func parallelTasks(agents, custom []string) ([]orchestrator.Task, error) {
	tasks := make([]orchestrator.Task, 0, len(agents)+len(custom))
	for _, name := range agents {
		tasks = append(tasks, orchestrator.Task{Agent: strings.TrimSpace(name)})
	}
	for _, pair := range custom {
		name, msg, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --task %q, want agent=message", pair)
		}
		tasks = append(tasks, orchestrator.Task{Agent: strings.TrimSpace(name), Message: msg})
	}
	if len(tasks) == 0 {
		return nil, errors.New("at least one --agent or --task is required")
	}
	return tasks, nil
}
