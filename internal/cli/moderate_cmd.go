package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/soyeahso/agentdesk/internal/moderation"
	"github.com/spf13/cobra"
)

func newModerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "moderate",
		Short: "Scan files or text for inappropriate content",
	}

	cmd.AddCommand(newModerateScanCmd())
	cmd.AddCommand(newModerateBatchCmd())
	cmd.AddCommand(newModerateTextCmd())
	return cmd
}

func (a *app) moderator() (*moderation.Moderator, error) {
	if a.mod == nil {
		return nil, errors.New("moderation needs a configured LLM provider")
	}
	return a.mod, nil
}

func newModerateScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan one file in an allowed directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.moderator()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.ScanFile(ctx, args[0]))
			return nil
		},
	}
}

func newModerateBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <path...>",
		Short: "Scan several files concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.moderator()
			if err != nil {
				return err
			}
			results := m.BatchScan(ctx, args)
			out := cmd.OutOrStdout()
			for _, path := range slices.Sorted(maps.Keys(results)) {
				fmt.Fprintf(out, "## %s\n\n%s\n\n", path, results[path])
			}
			return nil
		},
	}
}

func newModerateTextCmd() *cobra.Command {
	var structured bool

	cmd := &cobra.Command{
		Use:   "text <text...>",
		Short: "Moderate a piece of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := commandContext()
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.moderator()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			if !structured {
				fmt.Fprintln(cmd.OutOrStdout(), m.ModerateContent(ctx, text))
				return nil
			}
			report, err := m.StructuredModeration(ctx, text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().BoolVar(&structured, "structured", false, "print a validated JSON report")
	return cmd
}
