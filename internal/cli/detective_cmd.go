package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/detective"
	"github.com/spf13/cobra"
)

func newDetectiveCmd() *cobra.Command {
	var (
		model   string
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "detective <company...>",
		Short: "Research a company and compile a report",
		Args:  cobra.MinimumNArgs(1),
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
			d := detective.New(client, detective.Options{
				Model:   model,
				Tools:   a.tools,
				Catalog: a.catalog,
				Runner:  []agent.Option{agent.WithHooks(a.hooks)},
			}, log)

			report, err := d.Investigate(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, report)
			}
			if verbose {
				fmt.Fprintf(out, "# Profile\n\n%s\n\n# News\n\n%s\n\n# Financials\n\n%s\n\n", report.Profile, report.News, report.Financials)
			}
			fmt.Fprintln(out, report.Report)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model to use (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print every section as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the research sections before the report")
	return cmd
}
