// Package catalog loads agent definitions from a tree of markdown files
// with YAML frontmatter and runs them through the configured providers.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a definition leaves a field empty.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000
)

// Frontmatter is the optional YAML header of an agent file.
type Frontmatter struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Model       string   `yaml:"model"`
	Provider    string   `yaml:"provider"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Tags        []string `yaml:"tags"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Tools       []string `yaml:"tools"`
}

// Definition is a fully resolved agent.
type Definition struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Prompt      string   `json:"prompt"`
	FilePath    string   `json:"filePath"`
	Model       string   `json:"model"`
	Provider    string   `json:"provider"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"maxTokens"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Tools       []string `json:"tools,omitempty"`
}

// ModelDefaults supplies the model and provider for definitions that do
// not name one.
type ModelDefaults struct {
	Model    string
	Provider string
}

var frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n`)

// SplitFrontmatter separates the YAML header from the markdown body. Content
// without a header yields an empty Frontmatter. On malformed YAML the body
// is still returned alongside the error.
func SplitFrontmatter(content string) (Frontmatter, string, error) {
	var fm Frontmatter
	m := frontmatterRe.FindStringSubmatchIndex(content)
	if m == nil {
		return fm, content, nil
	}
	body := content[m[1]:]
	if err := yaml.Unmarshal([]byte(content[m[2]:m[3]]), &fm); err != nil {
		return Frontmatter{}, body, fmt.Errorf("parsing frontmatter: %w", err)
	}
	return fm, body, nil
}

// ExtractPrompt trims body and drops its leading heading lines.
func ExtractPrompt(body string) string {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "#") {
		return body
	}
	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "#") {
		i++
	}
	return strings.TrimSpace(strings.Join(lines[i:], "\n"))
}

// NameFromPath derives an agent name from a file name: the stem with
// hyphens turned into underscores.
func NameFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(stem, "-", "_")
}

// Resolve builds a Definition from parsed parts, filling defaults.
func Resolve(path string, fm Frontmatter, body string, d ModelDefaults) Definition {
	def := Definition{
		Name:        fm.Name,
		Category:    fm.Category,
		Prompt:      ExtractPrompt(body),
		FilePath:    path,
		Model:       fm.Model,
		Provider:    fm.Provider,
		Temperature: fm.Temperature,
		MaxTokens:   fm.MaxTokens,
		Tags:        fm.Tags,
		Description: fm.Description,
		Version:     fm.Version,
		Tools:       fm.Tools,
	}
	if def.Name == "" {
		def.Name = NameFromPath(path)
	}
	if def.Category == "" {
		def.Category = filepath.Base(filepath.Dir(path))
	}
	if def.Model == "" {
		def.Model = d.Model
	}
	if def.Provider == "" {
		def.Provider = d.Provider
	}
	if def.Temperature == 0 {
		def.Temperature = DefaultTemperature
	}
	if def.MaxTokens == 0 {
		def.MaxTokens = DefaultMaxTokens
	}
	return def
}

// MarkdownFiles returns every *.md file under dir, recursively, in lexical
// order.
func MarkdownFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
