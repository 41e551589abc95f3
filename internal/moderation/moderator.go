package moderation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/retry"
)

// ModeratorInstructions is the system prompt of the moderation agent.
const ModeratorInstructions = `You are a professional content moderation assistant. Your role is to help
users identify and address inappropriate content in text files.

When scanning files:
1. Use the profanity_scanner tool to analyze the file content
2. Provide clear, professional feedback about any issues found
3. Suggest constructive alternatives when appropriate
4. Maintain a helpful and non-judgmental tone

Only scan files in the allowed directories for security reasons.`

// Content statuses and severities of a Report.
const (
	StatusClean          = "clean"
	StatusContainsIssues = "contains_issues"

	SeverityNone     = "none"
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Report is the structured moderation verdict.
type Report struct {
	ContentStatus   string   `json:"content_status"`
	Severity        string   `json:"severity"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Validate checks the enumerations and that a clean report has no issues.
func (r Report) Validate() error {
	if r.ContentStatus != StatusClean && r.ContentStatus != StatusContainsIssues {
		return fmt.Errorf("invalid content_status %q", r.ContentStatus)
	}
	if !slices.Contains([]string{SeverityNone, SeverityMild, SeverityModerate, SeveritySevere}, r.Severity) {
		return fmt.Errorf("invalid severity %q", r.Severity)
	}
	if r.ContentStatus == StatusClean && (r.Severity != SeverityNone || len(r.Issues) > 0) {
		return fmt.Errorf("clean content cannot carry issues")
	}
	return nil
}

const reportPrompt = `Assess the following content for profanity and inappropriate language.
Reply with JSON only, in this shape:
{"content_status": "clean" | "contains_issues", "severity": "none" | "mild" | "moderate" | "severe", "issues": ["..."], "recommendations": ["..."]}
Do not repeat offensive words in the issues.

Content:
`

// Moderator drives the moderation agent and the analyzer.
type Moderator struct {
	agent    Asker
	analyzer Asker
	scanner  *Scanner
	policy   retry.Policy
	parallel int
	log      *logging.Logger
}

// Options configures a Moderator built by New.
type Options struct {
	Model     string
	SafeDirs  []string
	Policy    retry.Policy
	Parallel  int // BatchScan concurrency, default 4
	MaxTokens int
}

// New builds the analyzer, the scanner and the tool-using moderation agent
// on client.
func New(client llm.Client, opts Options, log *logging.Logger) *Moderator {
	analyzer := agent.NewRunner(agent.Config{
		AgentID:      "moderation.analyzer",
		AgentName:    "Content Analyzer",
		Instructions: AnalyzerInstructions,
		Model:        opts.Model,
		MaxTokens:    opts.MaxTokens,
	}, client, nil, nil, log)

	scanner := NewScanner(opts.SafeDirs, analyzer, log)
	moderator := agent.NewRunner(agent.Config{
		AgentID:      "moderation",
		AgentName:    "Content Moderator",
		Instructions: ModeratorInstructions,
		Model:        opts.Model,
		MaxTokens:    opts.MaxTokens,
	}, client, nil, agent.NewToolRegistry(scanner.Tool()), log)

	return NewModerator(moderator, analyzer, scanner, opts.Policy, opts.Parallel, log)
}

// NewModerator assembles a Moderator from its parts. A zero policy means
// StructuredPolicy(time.Second).
func NewModerator(moderator, analyzer Asker, scanner *Scanner, policy retry.Policy, parallel int, log *logging.Logger) *Moderator {
	if policy.MaxAttempts == 0 {
		policy = StructuredPolicy(time.Second)
	}
	if parallel <= 0 {
		parallel = 4
	}
	return &Moderator{
		agent:    moderator,
		analyzer: analyzer,
		scanner:  scanner,
		policy:   policy,
		parallel: parallel,
		log:      log.Sub("moderation"),
	}
}

// Scanner returns the file scanner.
func (m *Moderator) Scanner() *Scanner { return m.scanner }

// ScanFile asks the moderation agent to scan path.
func (m *Moderator) ScanFile(ctx context.Context, path string) string {
	prompt := fmt.Sprintf("Please scan the file at '%s' for profanity and inappropriate content. "+
		"Provide a detailed analysis and recommendations.", path)
	out, err := m.agent.Ask(ctx, prompt)
	if err != nil {
		m.log.Error().Str("path", path).Err(err).Msg("error scanning file")
		return "Error: " + err.Error()
	}
	return out
}

// ModerateContent forwards a free-form moderation request to the agent.
func (m *Moderator) ModerateContent(ctx context.Context, request string) string {
	out, err := m.agent.Ask(ctx, request)
	if err != nil {
		m.log.Error().Err(err).Msg("error processing request")
		return "Error processing request: " + err.Error()
	}
	return out
}

// BatchScan scans every path and returns the reports keyed by path.
func (m *Moderator) BatchScan(ctx context.Context, paths []string) map[string]string {
	results := make(map[string]string, len(paths))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallel)
	for _, p := range paths {
		g.Go(func() error {
			m.log.Info().Str("path", p).Msg("scanning")
			out := m.ScanFile(gctx, p)
			mu.Lock()
			results[p] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// StructuredModeration returns a validated Report for text.
func (m *Moderator) StructuredModeration(ctx context.Context, text string) (Report, error) {
	return SafeStructuredOutput[Report](ctx, m.analyzer, reportPrompt+strings.TrimSpace(text), m.policy, m.log)
}
