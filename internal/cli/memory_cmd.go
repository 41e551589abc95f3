package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/memory"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// memoryArgs are the arguments shared by every memory action.
type memoryArgs struct {
	req  memory.Request
	topK int
}

func (m *memoryArgs) bind(fs *pflag.FlagSet) {
	fs.StringVar(&m.req.EngineID, "engine-id", "", "memory engine id (default $GOOGLE_AGENT_MEMORY)")
	fs.StringVar(&m.req.UserID, "user-id", "", "user the memory belongs to")
	fs.StringVar(&m.req.Fact, "fact", "", "fact to store")
	fs.StringVar(&m.req.Query, "query", "", "search query")
	fs.StringVar(&m.req.DisplayName, "display-name", "agentdesk memory", "display name for a new engine")
	fs.IntVar(&m.topK, "top-k", 0, "maximum search results (default from config)")
}

func newMemoryCmd() *cobra.Command {
	var args memoryArgs

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Create memory engines and store or search user memories",
		Long: `Manage the memory bank. Use a subcommand, or exactly one of the action flags
--create-agent, --create-memory, --get-memory or --search.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMemory(cmd, args)
		},
	}

	args.bind(cmd.Flags())
	cmd.Flags().BoolVar(&args.req.CreateEngine, "create-agent", false, "create a new memory engine")
	cmd.Flags().BoolVar(&args.req.CreateMemory, "create-memory", false, "store a fact for --user-id")
	cmd.Flags().BoolVar(&args.req.GetMemory, "get-memory", false, "list the facts for --user-id")
	cmd.Flags().BoolVar(&args.req.Search, "search", false, "search the facts for --user-id")

	cmd.AddCommand(newMemoryActionCmd("create-engine", "Create a new memory engine", func(r *memory.Request) { r.CreateEngine = true }))
	cmd.AddCommand(newMemoryActionCmd("create", "Store a fact for a user", func(r *memory.Request) { r.CreateMemory = true }))
	cmd.AddCommand(newMemoryActionCmd("get", "List a user's facts", func(r *memory.Request) { r.GetMemory = true }))
	cmd.AddCommand(newMemoryActionCmd("search", "Search a user's facts", func(r *memory.Request) { r.Search = true }))
	return cmd
}

func newMemoryActionCmd(use, short string, action func(*memory.Request)) *cobra.Command {
	var args memoryArgs

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			action(&args.req)
			return runMemory(cmd, args)
		},
	}
	args.bind(cmd.Flags())
	return cmd
}

func runMemory(cmd *cobra.Command, args memoryArgs) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if args.req.EngineID == "" {
		args.req.EngineID = cfg.Memory.EngineID
	}
	if err := args.req.Validate(); err != nil {
		return err
	}
	if args.topK <= 0 {
		args.topK = cfg.Memory.TopK
	}

	ctx, stop := commandContext()
	defer stop()

	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	bank, err := memory.Open(ctx, &cfg, db, log)
	if err != nil {
		return err
	}
	if c, ok := bank.(io.Closer); ok {
		defer c.Close()
	}
	return memoryAction(ctx, cmd.OutOrStdout(), bank, args, cfg)
}

func memoryAction(ctx context.Context, out io.Writer, bank memory.Bank, args memoryArgs, cfg config.Config) error {
	r := args.req
	switch {
	case r.CreateEngine:
		id, err := bank.CreateEngine(ctx, r.DisplayName)
		if err != nil {
			return fmt.Errorf("❌ Error creating memory engine: %w", err)
		}
		fmt.Fprintf(out, "✅ Created memory engine: %s\n", id)
		fmt.Fprintf(out, "   export GOOGLE_AGENT_MEMORY=%s\n", id)

	case r.CreateMemory:
		m, err := bank.Create(ctx, r.EngineID, r.UserID, r.Fact)
		if err != nil {
			return fmt.Errorf("❌ Error creating memory: %w", err)
		}
		fmt.Fprintf(out, "✅ Memory created: %s\n", m.Name)

	case r.GetMemory:
		mems, err := bank.List(ctx, r.EngineID, r.UserID)
		if err != nil {
			return fmt.Errorf("❌ Error listing memories: %w", err)
		}
		if len(mems) == 0 {
			fmt.Fprintf(out, "No memories found for user %s\n", r.UserID)
			return nil
		}
		fmt.Fprintf(out, "Found %d memories for user %s:\n", len(mems), r.UserID)
		fmt.Fprintln(out, memory.FormatFacts(mems))

	case r.Search:
		mems, err := bank.Search(ctx, r.EngineID, r.UserID, r.Query, args.topK)
		if err != nil {
			return fmt.Errorf("❌ Error searching memories: %w", err)
		}
		if len(mems) == 0 {
			fmt.Fprintf(out, "No memories matching %q for user %s (backend %s)\n", r.Query, r.UserID, cfg.Memory.Backend)
			return nil
		}
		fmt.Fprintf(out, "Found %d relevant memories:\n", len(mems))
		for _, m := range mems {
			fmt.Fprintf(out, "- %s (score %.2f)\n", m.Fact, m.Score)
		}
	}
	return nil
}
