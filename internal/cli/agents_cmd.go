package cli

import (
	"context"
	"fmt"
	"maps"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/domain"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/spf13/cobra"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agents",
		Aliases: []string{"agent"},
		Short:   "List, inspect and run catalog agents",
	}

	cmd.AddCommand(newAgentsListCmd())
	cmd.AddCommand(newAgentsInfoCmd())
	cmd.AddCommand(newAgentsRunCmd())
	cmd.AddCommand(newAgentsConsensusCmd())
	cmd.AddCommand(newAgentsCategoriesCmd())
	return cmd
}

// commandContext is cancelled on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newAgentsListCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			names := a.catalog.List()
			if len(names) == 0 {
				fmt.Fprintf(out, "No agents found in %s\n", paths.AgentsDir(&a.cfg))
				return nil
			}
			for _, name := range names {
				def, _ := a.catalog.Get(name)
				if category != "" && def.Category != category {
					continue
				}
				fmt.Fprintf(out, "  %-32s %-20s model=%s provider=%s\n", def.Name, def.Category, def.Model, def.Provider)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only list agents in this category")
	return cmd
}

func newAgentsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show an agent definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			def, ok := a.catalog.Get(args[0])
			if !ok {
				return fmt.Errorf("Agent '%s' not found", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", def.Name)
			fmt.Fprintf(out, "Category:    %s\n", def.Category)
			fmt.Fprintf(out, "File:        %s\n", def.FilePath)
			fmt.Fprintf(out, "Model:       %s (%s)\n", def.Model, def.Provider)
			fmt.Fprintf(out, "Temperature: %g\n", def.Temperature)
			fmt.Fprintf(out, "Max tokens:  %d\n", def.MaxTokens)
			if def.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", def.Description)
			}
			if len(def.Tags) > 0 {
				fmt.Fprintf(out, "Tags:        %s\n", strings.Join(def.Tags, ", "))
			}
			if len(def.Tools) > 0 {
				fmt.Fprintf(out, "Tools:       %s\n", strings.Join(def.Tools, ", "))
			}
			fmt.Fprintf(out, "\n%s\n", def.Prompt)
			return nil
		},
	}
}

func newAgentsRunCmd() *cobra.Command {
	var (
		userID string
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "run <name> <message...>",
		Short: "Send a message to an agent and print the response",
		Long:  `Send a message to a catalog agent. The name "default" runs the gateway's default agent.`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var runner *agent.Runner
			if args[0] == "default" {
				runner, err = a.defaultRunner()
			} else {
				runner, err = a.manager.Runner(args[0])
			}
			if err != nil {
				return err
			}

			req := domain.Request{
				Surface:   "cli",
				UserID:    userID,
				Body:      strings.Join(args[1:], " "),
				Timestamp: time.Now(),
			}
			out := cmd.OutOrStdout()

			var result *agent.RunResult
			if stream {
				result, err = runner.RunStream(ctx, req, func(evt llm.StreamEvent) {
					switch evt.Type {
					case llm.EventDelta:
						fmt.Fprint(out, evt.Content)
					case agent.EventToolStart, agent.EventToolResult, agent.EventToolError:
						fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s]\n", evt.Content)
					}
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
			} else {
				result, err = runner.Run(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, result.Response)
			}
			if result.Model != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[model=%s tokens=%d+%d]\n",
					result.Model, result.Usage.InputTokens, result.Usage.OutputTokens)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "cli", "user id for the session")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the response")
	return cmd
}

func newAgentsConsensusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consensus <category> <message...>",
		Short: "Ask every agent in a category and print each answer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			answers := a.manager.RunCategoryConsensus(ctx, args[0], strings.Join(args[1:], " "))
			if len(answers) == 0 {
				return fmt.Errorf("no agents in category %q", args[0])
			}
			out := cmd.OutOrStdout()
			for _, name := range slices.Sorted(maps.Keys(answers)) {
				fmt.Fprintf(out, "## %s\n\n%s\n\n", name, answers[name])
			}
			return nil
		},
	}
}

func newAgentsCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List agent categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(a.specs) == 0 {
				fmt.Fprintln(out, "No categories found")
				return nil
			}
			for _, s := range a.specs {
				fmt.Fprintf(out, "  %-24s %-24s %d agent(s)\n", s.Slug, s.Title, len(s.Agents))
			}
			return nil
		},
	}
}
