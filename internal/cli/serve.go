package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/gateway"
	"github.com/soyeahso/agentdesk/internal/tasks"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"gateway"},
		Short:   "Start the HTTP/WebSocket gateway",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if port != 0 {
				a.cfg.Gateway.Port = port
			}
			if bind != "" {
				a.cfg.Gateway.Bind = bind
			}

			// Raw config backs the config.get RPC
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			opts := []gateway.ServerOption{
				gateway.WithConfigRaw(raw),
				gateway.WithHooks(a.hooks),
				gateway.WithRouter(a.router()),
			}
			if a.orch != nil {
				opts = append(opts, gateway.WithOrchestrator(a.orch))
			}

			if providers := a.registry.List(); len(providers) > 0 {
				log.Info().Strs("providers", providers).Msg("LLM providers available")
			}

			runner, err := a.defaultRunner()
			if err != nil {
				log.Warn().Err(err).Msg("no default agent, /chat and chat.send will be unavailable")
			} else {
				opts = append(opts, gateway.WithRunner(runner))

				store, err := tasks.Open(ctx, a.cfg.Tasks, log)
				if err != nil {
					return fmt.Errorf("opening task store: %w", err)
				}
				if pg, ok := store.(*tasks.PostgresStore); ok {
					defer pg.Close()
				}
				card := tasks.NewAgentCard(runner.Config().AgentName,
					"Answers questions with markdown-defined specialist agents.",
					a.cfg.Gateway.PublicURL, agentSkills(a.catalog)...)
				opts = append(opts, gateway.WithTasks(tasks.NewExecutor(card, runner, store, log)))
			}

			srv := gateway.New(a.cfg, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (lan, loopback, custom)")

	return cmd
}

// agentSkills advertises each catalog agent as an A2A skill.
func agentSkills(cat *catalog.Catalog) []tasks.Skill {
	var skills []tasks.Skill
	for _, name := range cat.List() {
		def, _ := cat.Get(name)
		title := catalog.Title(strings.ReplaceAll(def.Name, "_", "-"))
		desc := def.Description
		if desc == "" {
			desc = title
		}
		tags := def.Tags
		if def.Category != "" {
			tags = append([]string{def.Category}, tags...)
		}
		skills = append(skills, tasks.Skill{
			ID:          def.Name,
			Name:        title,
			Description: desc,
			Tags:        tags,
		})
	}
	return skills
}
