package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/gateway"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/orchestrator"
	"github.com/soyeahso/agentdesk/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agentdesk status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agentdesk %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Gateway:   %s bind=%s auth=%s\n",
				gateway.ResolveBindAddr(cfg.Gateway), cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)
			fmt.Fprintf(out, "Session:   store=%s timeout=%ds\n", cfg.Session.Store, cfg.Session.TimeoutSeconds)
			fmt.Fprintf(out, "Memory:    backend=%s topK=%d\n", cfg.Memory.Backend, cfg.Memory.TopK)
			fmt.Fprintf(out, "Tasks:     store=%s\n", cfg.Tasks.Store)

			registry := llm.NewRegistryFromConfig(context.Background(), &cfg, log)
			if providers := registry.List(); len(providers) > 0 {
				fmt.Fprintf(out, "LLM:       %s (default %s/%s)\n", strings.Join(providers, ", "),
					cfg.Agents.Defaults.Provider, cfg.Agents.Defaults.Model)
			} else {
				fmt.Fprintln(out, "LLM:       (none configured)")
			}

			agentsDir := paths.AgentsDir(&cfg)
			if files, err := catalog.MarkdownFiles(agentsDir); err == nil {
				fmt.Fprintf(out, "Agents:    %d definition(s) in %s\n", len(files), agentsDir)
			} else {
				fmt.Fprintf(out, "Agents:    (not found) %s\n", agentsDir)
			}
			if specs, err := catalog.Specializations(agentsDir); err == nil && len(specs) > 0 {
				fmt.Fprintf(out, "Categories: %d\n", len(specs))
			}

			workflowsDir := paths.WorkflowsDir(&cfg)
			if o, err := orchestrator.New(workflowsDir, nil, registry, orchestrator.Options{}, log); err == nil {
				fmt.Fprintf(out, "Workflows: %s\n", strings.Join(o.ListWorkflows(), ", "))
			} else {
				fmt.Fprintf(out, "Workflows: (not found) %s\n", workflowsDir)
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}

	return cmd
}
