package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentdesk/internal/llm"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	Instructions string
	Tools        []llm.ToolDefinition
	UserName     string
	ExtraPrompt  string
	Now          time.Time
}

// BuildSystemPrompt constructs the system prompt: the agent's instructions,
// a date line, the optional user line, and the tool-call protocol when
// tools are available.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	if cfg.Instructions != "" {
		b.WriteString(strings.TrimSpace(cfg.Instructions))
		b.WriteString("\n\n")
	}

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))
	if cfg.UserName != "" {
		fmt.Fprintf(&b, "User: %s\n", cfg.UserName)
	}

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		b.WriteString("You can call tools by outputting a fenced code block with the language tag `tool_call`:\n\n")
		b.WriteString("```tool_call\n{\"tool\": \"tool_name\", \"input\": {\"param\": \"value\"}}\n```\n\n")
		b.WriteString("After a tool is executed, the result will be provided. You may call multiple tools before giving your final response.\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if t.InputSchema != "" {
				fmt.Fprintf(&b, "Input schema: %s\n", t.InputSchema)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
