package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".agentdesk"

// Paths holds resolved filesystem locations for agentdesk data.
type Paths struct {
	Base      string // ~/.agentdesk
	Config    string // ~/.agentdesk/agentdesk.yaml
	Agents    string // ~/.agentdesk/agents
	Workflows string // ~/.agentdesk/orchestrator
	Data      string // ~/.agentdesk/data
	Logs      string // ~/.agentdesk/logs
}

// ResolvePaths computes the standard paths. AGENTDESK_HOME overrides the
// default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("AGENTDESK_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:      base,
		Config:    filepath.Join(base, "agentdesk.yaml"),
		Agents:    filepath.Join(base, "agents"),
		Workflows: filepath.Join(base, "orchestrator"),
		Data:      filepath.Join(base, "data"),
		Logs:      filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates the base, data and log directories if they don't
// exist. The agent and workflow trees are user-authored and left alone.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// Database returns the sqlite file used for sessions and memories.
func (p Paths) Database() string {
	return filepath.Join(p.Data, "agentdesk.db")
}

// History returns the file the calculator REPL persists to.
func (p Paths) History() string {
	return filepath.Join(p.Data, "calc_history.json")
}

// AgentsDir returns the configured agent tree, falling back to the default.
func (p Paths) AgentsDir(cfg *Config) string {
	if cfg.Agents.Dir != "" {
		return cfg.Agents.Dir
	}
	return p.Agents
}

// WorkflowsDir returns the configured workflow tree, falling back to the default.
func (p Paths) WorkflowsDir(cfg *Config) string {
	if cfg.Orchestrator.Dir != "" {
		return cfg.Orchestrator.Dir
	}
	return p.Workflows
}

var blockedKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// ParseConfigPath splits a dot-separated config path into segments.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
		if blockedKeys[p] {
			return nil, &ConfigError{Message: "config path contains blocked key: " + p}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	var current any = root
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
