package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/retry"
	"github.com/soyeahso/agentdesk/internal/support"
	"github.com/spf13/cobra"
)

func newSupportCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "support",
		Short: "Chat with the bank support agent",
		Long: `Start an interactive session with the bank support agent.
Commands: "login <username> <password>", "logout", "quit". Anything else is a question.`,
		Args: cobra.NoArgs,
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
			timeout := time.Duration(a.cfg.Session.TimeoutSeconds) * time.Second
			auth := support.NewAuthService(support.NewDirectory(), support.NewSessionManager(timeout))
			bot := support.NewAgent(client, model, auth, retry.Default(), log, agent.WithHooks(a.hooks))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, `Bank support. Type "login <username> <password>" to authenticate, or ask a question.`)

			var token string
			return repl(ctx, cmd.InOrStdin(), out, "support> ", func(ctx context.Context, line string) error {
				fields := strings.Fields(line)
				switch strings.ToLower(fields[0]) {
				case "login":
					if len(fields) != 3 {
						return errors.New("usage: login <username> <password>")
					}
					t, err := auth.Login(fields[1], fields[2])
					if err != nil {
						return err
					}
					token = t
					deps, _ := auth.Deps(token)
					name, _ := auth.Directory().CustomerName(deps.CustomerID)
					fmt.Fprintf(out, "Logged in as %s\n", name)
					return nil
				case "logout":
					if token != "" {
						auth.Logout(token)
						token = ""
					}
					fmt.Fprintln(out, "Logged out")
					return nil
				}

				res, err := bot.Handle(ctx, token, line)
				var authErr *support.AuthenticationError
				if errors.As(err, &authErr) {
					token = ""
					return fmt.Errorf("%s, please log in again", authErr.Message)
				}
				if err != nil {
					return err
				}
				return printJSON(out, res)
			})
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model to use (default from config)")
	return cmd
}
