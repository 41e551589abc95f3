package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/retry"
	"github.com/soyeahso/agentdesk/internal/structured"
)

// BaseInstructions is the fixed part of the support agent's prompt.
const BaseInstructions = `You are a support agent in our bank. Before providing any sensitive information or performing account-related actions, you must verify that the user is properly authenticated. For unauthenticated users, only provide general information and ask them to log in for account-specific queries. Judge the risk level of their query and reply using the customer's name only if they are authenticated.`

const outputInstructions = `Reply with JSON only:
{"support_advice": "<advice returned to the customer>", "block_card": <whether to block their card>, "risk": <risk level of the query, 0-10>, "requires_authentication": <whether the query requires authentication>}`

// Output is the agent's structured reply.
type Output struct {
	SupportAdvice          string `json:"support_advice"`
	BlockCard              bool   `json:"block_card"`
	Risk                   int    `json:"risk"`
	RequiresAuthentication bool   `json:"requires_authentication"`
}

// Validate checks the advice and the risk range.
func (o Output) Validate() error {
	if strings.TrimSpace(o.SupportAdvice) == "" {
		return errors.New("support_advice is required")
	}
	if o.Risk < 0 || o.Risk > 10 {
		return fmt.Errorf("risk must be between 0 and 10, got %d", o.Risk)
	}
	return nil
}

// Instructions renders the prompt for deps on day now.
func Instructions(dir *Directory, deps Deps, now time.Time) string {
	var status string
	switch {
	case !deps.Authenticated:
		status = "IMPORTANT: User is NOT authenticated. Do not provide any account-specific information, " +
			"balances, or personal details. Ask them to log in first for account-related queries."
	case !dir.IsActive(deps.CustomerID):
		status = "IMPORTANT: Customer account is inactive. Escalate to supervisor."
	default:
		name, _ := dir.CustomerName(deps.CustomerID)
		status = fmt.Sprintf("User is authenticated. Customer's name is '%s'", name)
	}
	return strings.Join([]string{
		BaseInstructions,
		status,
		fmt.Sprintf("The current date is %s.", now.Format(time.DateOnly)),
		outputInstructions,
	}, "\n\n")
}

// Tools returns customer_balance and account_status bound to deps.
func Tools(dir *Directory, deps Deps) []agent.Tool {
	return []agent.Tool{
		agent.NewFuncTool("customer_balance",
			"Returns the customer's current account balance. Requires authentication.",
			`{"type":"object","properties":{"include_pending":{"type":"boolean","default":false}}}`,
			func(_ context.Context, input string) (string, error) {
				if !deps.Authenticated {
					return "", errors.New("Authentication required. User must log in to access balance information.")
				}
				var args struct {
					IncludePending bool `json:"include_pending"`
				}
				if err := decodeInput(input, &args); err != nil {
					return "", err
				}
				b, err := dir.Balance(deps.CustomerID, args.IncludePending)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("$%.2f", b), nil
			}),
		agent.NewFuncTool("account_status",
			"Check if customer account is active. Requires authentication.",
			`{"type":"object","properties":{}}`,
			func(context.Context, string) (string, error) {
				if !deps.Authenticated {
					return "", errors.New("Authentication required. User must log in to check account status.")
				}
				if dir.IsActive(deps.CustomerID) {
					return "Account status: Active", nil
				}
				return "Account status: Inactive", nil
			}),
	}
}

func decodeInput(input string, v any) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

// Agent answers support queries.
type Agent struct {
	client llm.Client
	model  string
	auth   *AuthService
	policy retry.Policy
	opts   []agent.Option
	log    *logging.Logger
	now    func() time.Time
}

// NewAgent creates the support agent.
func NewAgent(client llm.Client, model string, auth *AuthService, policy retry.Policy, log *logging.Logger, opts ...agent.Option) *Agent {
	return &Agent{
		client: client,
		model:  model,
		auth:   auth,
		policy: policy,
		opts:   opts,
		log:    log.Sub("support"),
		now:    time.Now,
	}
}

// Auth returns the auth service.
func (a *Agent) Auth() *AuthService { return a.auth }

// Handle answers query for the session token (empty for anonymous users).
func (a *Agent) Handle(ctx context.Context, token, query string) (Output, error) {
	deps, err := a.auth.Deps(token)
	if err != nil {
		return Output{}, err
	}

	dir := a.auth.Directory()
	runner := agent.NewRunner(agent.Config{
		AgentID:      "support",
		AgentName:    "Bank Support",
		Instructions: Instructions(dir, deps, a.now()),
		Model:        a.model,
		JSON:         true,
	}, a.client, nil, agent.NewToolRegistry(Tools(dir, deps)...), a.log, a.opts...)

	out, err := retry.Do(ctx, a.policy, func(ctx context.Context, attempt int) (Output, error) {
		reply, err := runner.Ask(ctx, query)
		if err != nil {
			return Output{}, err
		}
		o, err := structured.ParseJSON[Output](reply)
		if err != nil {
			a.log.Warn().Int("attempt", attempt+1).Err(err).Msg("invalid support output")
		}
		return o, err
	})
	if err != nil {
		return Output{}, err
	}
	a.log.Info().Bool("authenticated", deps.Authenticated).Int("risk", out.Risk).Bool("blockCard", out.BlockCard).Msg("support reply")
	return out, nil
}
