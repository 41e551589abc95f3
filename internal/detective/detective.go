// Package detective researches a company with three agents running in
// parallel and compiles their findings into one report.
package detective

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/llm"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// Agent names, also used to look up catalog overrides.
const (
	CompanyProfiler  = "company_profiler"
	NewsFinder       = "news_finder"
	FinancialAnalyst = "financial_analyst"
	ReportCompiler   = "report_compiler"
)

// DefaultInstructions are used for agents the catalog does not define.
var DefaultInstructions = map[string]string{
	CompanyProfiler: `Your role is to provide a brief overview of the given company.
Include its mission, headquarters, and current CEO.
Use the search tools to find this information.`,
	NewsFinder: `Your role is to find the top 3-4 recent news headlines for the given company.
Use the search tools.
Present the results as a simple bulleted list.`,
	FinancialAnalyst: `Your role is to provide a snapshot of the given company's recent financial performance.
Focus on stock trends or recent earnings reports.
Use the search tools.`,
	ReportCompiler: `Your role is to synthesize the provided information into a coherent market research report.
Combine the company profile, latest news, and financial analysis into a single, well-formatted report.

## Company Profile
{profile}

## Latest News
{news}

## Financial Snapshot
{financials}`,
}

// SearchTools are the tool names the research agents may use.
var SearchTools = []string{"serper_search_google", "brave_search", "scrape_search"}

// Options configures a Detective.
type Options struct {
	Model string
	// Tools is the registry the search tools are taken from. Missing tools
	// are skipped.
	Tools *agent.ToolRegistry
	// Catalog supplies instruction overrides by agent name.
	Catalog *catalog.Catalog
	Runner  []agent.Option
}

// Report is the outcome of one investigation.
type Report struct {
	Company    string `json:"company"`
	Profile    string `json:"profile"`
	News       string `json:"news"`
	Financials string `json:"financials"`
	Report     string `json:"report"`
}

// Detective runs the company research pipeline.
type Detective struct {
	pipeline *agent.Pipeline
	log      *logging.Logger
}

// New builds the pipeline on client.
func New(client llm.Client, opts Options, log *logging.Logger) *Detective {
	log = log.Sub("detective")

	var search *agent.ToolRegistry
	if opts.Tools != nil {
		search = opts.Tools.Subset(SearchTools, log)
	}
	runner := func(name string, tools *agent.ToolRegistry) *agent.Runner {
		return agent.NewRunner(agent.Config{
			AgentID:      name,
			AgentName:    name,
			Instructions: Instructions(opts.Catalog, name),
			Model:        opts.Model,
		}, client, nil, tools, log, opts.Runner...)
	}

	p := agent.NewPipeline("company_detective",
		agent.Parallel("market_researcher",
			agent.AgentStage(CompanyProfiler, "profile", "{company}", runner(CompanyProfiler, search)),
			agent.AgentStage(NewsFinder, "news", "{company}", runner(NewsFinder, search)),
			agent.AgentStage(FinancialAnalyst, "financials", "{company}", runner(FinancialAnalyst, search)),
		),
		agent.InstructedAgentStage(ReportCompiler, "report", "{company}", runner(ReportCompiler, nil)),
	)
	return &Detective{pipeline: p, log: log}
}

// Instructions returns the catalog prompt for name, or the built-in one.
func Instructions(cat *catalog.Catalog, name string) string {
	if cat != nil {
		if def, ok := cat.Get(name); ok && strings.TrimSpace(def.Prompt) != "" {
			return def.Prompt
		}
	}
	return DefaultInstructions[name]
}

// Investigate researches company and returns every stage's output.
func (d *Detective) Investigate(ctx context.Context, company string) (*Report, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, errors.New("company is required")
	}
	d.log.Info().Str("company", company).Msg("investigation started")

	state, err := d.pipeline.Run(ctx, map[string]string{"company": company})
	if err != nil {
		d.log.Error().Str("company", company).Err(err).Msg("investigation failed")
		return nil, err
	}
	return &Report{
		Company:    company,
		Profile:    state["profile"],
		News:       state["news"],
		Financials: state["financials"],
		Report:     state["report"],
	}, nil
}
