package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newWorkflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflows",
		Aliases: []string{"workflow"},
		Short:   "List and run orchestrator workflows",
	}

	cmd.AddCommand(newWorkflowsListCmd())
	cmd.AddCommand(newWorkflowsInfoCmd())
	cmd.AddCommand(newWorkflowsStepCmd())
	return cmd
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newWorkflowsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			out := cmd.OutOrStdout()
			for _, name := range o.ListWorkflows() {
				wf, _ := o.WorkflowInfo(name)
				fmt.Fprintf(out, "  %-28s %s\n", name, wf.Description)
			}
			return nil
		},
	}
}

func newWorkflowsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show a workflow and its prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			wf, ok := o.WorkflowInfo(args[0])
			if !ok {
				return fmt.Errorf("Workflow '%s' not found", args[0])
			}
			model, provider := wf.StepModel()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", wf.Name)
			fmt.Fprintf(out, "File:        %s\n", wf.FilePath)
			fmt.Fprintf(out, "Model:       %s (%s)\n", model, provider)
			fmt.Fprintf(out, "Temperature: %g\n", wf.Temperature)
			fmt.Fprintf(out, "Max tokens:  %d\n", wf.MaxTokens)
			fmt.Fprintf(out, "Parallel:    %v\n", wf.Parallel)
			fmt.Fprintf(out, "\n%s\n", wf.SystemPrompt)
			return nil
		},
	}
}

func newWorkflowsStepCmd() *cobra.Command {
	var vars map[string]string

	cmd := &cobra.Command{
		Use:   "step <workflow> <step> <message...>",
		Short: "Execute one workflow step",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			res, err := o.ExecuteStep(ctx, args[0], args[1], strings.Join(args[2:], " "), vars)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringToStringVar(&vars, "var", nil, "template variable for the workflow prompt (key=value)")
	return cmd
}
