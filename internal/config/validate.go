package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// SupportedProviders lists the model providers agents may name.
var SupportedProviders = []string{"anthropic", "google", "openai"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("must be one of %v, got %q", valid, value),
			})
		}
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}
	oneOf("gateway.bind", cfg.Gateway.Bind, []string{"loopback", "lan", "custom"})
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{Path: "gateway.customBindHost", Message: "required when bind is custom"})
	}
	oneOf("gateway.auth.mode", cfg.Gateway.Auth.Mode, []string{"none", "token", "password"})
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{Path: "gateway.tls", Message: "certPath and keyPath are required when TLS is enabled"})
	}

	oneOf("agents.defaults.provider", strings.ToLower(cfg.Agents.Defaults.Provider), SupportedProviders)
	if t := cfg.Agents.Defaults.Temperature; t != nil && (*t < 0 || *t > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "agents.defaults.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", *t),
		})
	}
	if cfg.Agents.Defaults.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agents.defaults.maxTokens",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Agents.Defaults.MaxTokens),
		})
	}

	if cfg.Providers.Google.UseVertex && cfg.Providers.Google.Project == "" {
		issues = append(issues, ValidationIssue{Path: "providers.google.project", Message: "required when useVertex is set"})
	}

	oneOf("memory.backend", cfg.Memory.Backend, []string{"sqlite", "redis", "vertex", "memory"})
	if cfg.Memory.Backend == "redis" && cfg.Memory.RedisURL == "" {
		issues = append(issues, ValidationIssue{Path: "memory.redisUrl", Message: "required for the redis backend"})
	}
	if cfg.Memory.Backend == "vertex" && cfg.Providers.Google.Project == "" {
		issues = append(issues, ValidationIssue{Path: "providers.google.project", Message: "required for the vertex memory backend"})
	}

	oneOf("tasks.store", cfg.Tasks.Store, []string{"memory", "postgres"})
	if cfg.Tasks.Store == "postgres" {
		if missing := cfg.Tasks.Postgres.Missing(); len(missing) > 0 {
			issues = append(issues, ValidationIssue{
				Path:    "tasks.postgres",
				Message: fmt.Sprintf("Missing required environment variables: %v", missing),
			})
		}
	}

	oneOf("session.store", cfg.Session.Store, []string{"sqlite", "memory"})
	if cfg.Session.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{Path: "session.timeoutSeconds", Message: "must not be negative"})
	}

	oneOf("logging.level", cfg.Logging.Level, []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"})
	oneOf("logging.format", cfg.Logging.Format, []string{"console", "json"})

	return issues
}
