package cli

import (
	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentdesk",
		Short: "agentdesk: markdown-defined agents behind HTTP and CLI",
		Long: "agentdesk loads agent definitions and workflows from markdown, routes questions to them " +
			"and serves them over HTTP, WebSocket and A2A.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.agentdesk/agentdesk.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAgentsCmd())
	cmd.AddCommand(newWorkflowsCmd())
	cmd.AddCommand(newRouteCmd())
	cmd.AddCommand(newParallelCmd())
	cmd.AddCommand(newMemoryCmd())
	cmd.AddCommand(newModerateCmd())
	cmd.AddCommand(newCalcCmd())
	cmd.AddCommand(newSupportCmd())
	cmd.AddCommand(newDetectiveCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
