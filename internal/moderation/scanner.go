// Package moderation scans files and text for inappropriate content with a
// model-backed analyzer, restricted to an allow-list of directories.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// AnalyzerInstructions is the system prompt of the content analyzer.
const AnalyzerInstructions = `You are a content moderator. Analyze the provided text and identify any
profanity, offensive language, or inappropriate content. Report the severity
level (mild, moderate, severe) and suggest alternatives where applicable. Do
not repeat the offensive content in your analysis.

Respond in this format:
- Content Status: [Clean/Contains Issues]
- Severity: [None/Mild/Moderate/Severe]
- Issues Found: [Brief description without repeating offensive content]
- Recommendations: [Suggested actions or alternatives]`

// AccessDenied is returned for paths outside the allowed directories.
const AccessDenied = "Error: Access denied. Path not in allowed directories."

// Asker answers a single message.
type Asker interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Scanner reads files from allowed directories and hands their content to
// an analyzer.
type Scanner struct {
	allowed  []string
	analyzer Asker
	log      *logging.Logger
}

// NewScanner creates a scanner. No allowed dirs means the defaults.
func NewScanner(allowedDirs []string, analyzer Asker, log *logging.Logger) *Scanner {
	if len(allowedDirs) == 0 {
		allowedDirs = config.DefaultSafeDirs
	}
	allowed := make([]string, 0, len(allowedDirs))
	for _, d := range allowedDirs {
		allowed = append(allowed, realPath(d))
	}
	return &Scanner{allowed: allowed, analyzer: analyzer, log: log.Sub("moderation")}
}

// AllowedDirs returns the resolved allow-list.
func (s *Scanner) AllowedDirs() []string { return s.allowed }

// realPath makes p absolute and resolves symlinks when it exists.
func realPath(p string) string {
	abs, err := filepath.Abs(strings.TrimSpace(p))
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Allowed reports whether path resolves inside an allowed directory.
func (s *Scanner) Allowed(path string) bool {
	real := realPath(path)
	for _, dir := range s.allowed {
		if real == dir || strings.HasPrefix(real, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Scan checks path and returns the analyzer's report. Every failure comes
// back as an "Error: ..." string.
func (s *Scanner) Scan(ctx context.Context, path string) string {
	path = strings.TrimSpace(path)
	if !s.Allowed(path) {
		s.log.Warn().Str("path", path).Msg("security violation: path outside allowed directories")
		return AccessDenied
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Sprintf("Error: File '%s' does not exist.", path)
	}
	if err != nil {
		s.log.Error().Str("path", path).Err(err).Msg("error scanning file")
		return "Error scanning file: " + err.Error()
	}
	if !utf8.Valid(data) {
		s.log.Error().Str("path", path).Msg("invalid encoding")
		return fmt.Sprintf("Error: Unable to read file '%s' - invalid encoding. Please ensure file is UTF-8 encoded.", path)
	}

	report, err := s.analyzer.Ask(ctx, "Scan this text for profanity and inappropriate content:\n\n"+string(data))
	if err != nil {
		s.log.Error().Str("path", path).Err(err).Msg("error scanning file")
		return "Error scanning file: " + err.Error()
	}
	return report
}

// Tool exposes Scan as the profanity_scanner tool.
func (s *Scanner) Tool() agent.Tool {
	return agent.NewFuncTool(
		"profanity_scanner",
		"Scans a text file for profanity and inappropriate content. Only files in the allowed directories can be read.",
		`{"type":"object","properties":{"path":{"type":"string","description":"The file path to scan"}},"required":["path"]}`,
		func(ctx context.Context, input string) (string, error) {
			var args struct {
				Path  string `json:"path"`
				Query string `json:"query"`
			}
			if err := json.Unmarshal([]byte(input), &args); err != nil {
				return "Error: invalid input: " + err.Error(), nil
			}
			if args.Path == "" {
				args.Path = args.Query
			}
			if args.Path == "" {
				return "Error: path is required.", nil
			}
			return s.Scan(ctx, args.Path), nil
		},
	)
}
