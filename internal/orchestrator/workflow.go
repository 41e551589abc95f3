// Package orchestrator keeps the markdown-defined workflow prompts, builds
// agents from them, fans tasks out to catalog agents and routes queries to
// the right category.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/agentdesk/internal/catalog"
)

// Workflow defaults.
const (
	DefaultWorkflowTemperature = 0.7
	DefaultWorkflowMaxTokens   = 2000
	DefaultStepModel           = "gemini-2.5-flash-lite"
	DefaultStepProvider        = "google"
)

// Workflow is a named system prompt loaded from a markdown file.
type Workflow struct {
	Name         string  `yaml:"name" json:"name"`
	SystemPrompt string  `yaml:"system_prompt" json:"systemPrompt"`
	Description  string  `yaml:"description" json:"description,omitempty"`
	Model        string  `yaml:"model" json:"model,omitempty"`
	Provider     string  `yaml:"provider" json:"provider,omitempty"`
	Temperature  float64 `yaml:"temperature" json:"temperature"`
	MaxTokens    int     `yaml:"max_tokens" json:"maxTokens"`
	Parallel     bool    `yaml:"parallel" json:"parallel"`
	FilePath     string  `yaml:"-" json:"filePath"`
}

// StepModel returns the workflow's model and provider, falling back to the
// step defaults.
func (w Workflow) StepModel() (model, provider string) {
	model, provider = w.Model, w.Provider
	if model == "" {
		model = DefaultStepModel
	}
	if provider == "" {
		provider = DefaultStepProvider
	}
	return model, provider
}

// LoadWorkflow parses a workflow file. Frontmatter keys override the
// defaults; the remaining body becomes the system prompt. Malformed
// frontmatter is returned as warn and otherwise ignored.
func LoadWorkflow(path string) (wf Workflow, warn error, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workflow{}, nil, err
	}

	wf = Workflow{
		Name:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Temperature: DefaultWorkflowTemperature,
		MaxTokens:   DefaultWorkflowMaxTokens,
		FilePath:    path,
	}

	content := string(data)
	if m := frontmatterRe.FindStringSubmatch(content); m != nil {
		parsed := wf
		if yerr := yaml.Unmarshal([]byte(m[1]), &parsed); yerr != nil {
			warn = fmt.Errorf("could not parse workflow frontmatter: %w", yerr)
		} else {
			wf = parsed
		}
		content = content[len(m[0]):]
	}
	wf.SystemPrompt = strings.TrimSpace(content)
	return wf, warn, nil
}

var frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n`)

// Render replaces {{key}} placeholders in prompt with values from vars.
func Render(prompt string, vars map[string]string) string {
	for k, v := range vars {
		prompt = strings.ReplaceAll(prompt, "{{"+k+"}}", v)
	}
	return prompt
}

// loadWorkflows reads every workflow under dir, keyed by name. Files that
// fail to load are reported through onWarn and skipped.
func loadWorkflows(dir string, onWarn func(path string, err error)) (map[string]Workflow, error) {
	files, err := catalog.MarkdownFiles(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Workflow, len(files))
	for _, f := range files {
		wf, warn, err := LoadWorkflow(f)
		if warn != nil {
			onWarn(f, warn)
		}
		if err != nil {
			onWarn(f, err)
			continue
		}
		out[wf.Name] = wf
	}
	return out, nil
}
