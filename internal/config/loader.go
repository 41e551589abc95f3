package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} references.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves ${VAR} references in credential fields so
// secrets can live in the environment instead of the file.
func expandSensitiveFields(cfg *Config) {
	for _, p := range []*string{
		&cfg.Gateway.Auth.Token,
		&cfg.Gateway.Auth.Password,
		&cfg.Providers.Google.APIKey,
		&cfg.Providers.Anthropic.APIKey,
		&cfg.Providers.OpenAI.APIKey,
		&cfg.Tools.SerperAPIKey,
		&cfg.Tools.BraveAPIKey,
		&cfg.Memory.RedisURL,
		&cfg.Tasks.Postgres.DSN,
		&cfg.Tasks.Postgres.Password,
	} {
		*p = expandEnvVars(*p)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A missing file yields defaults plus environment.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return Defaults(), err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "lan"
	}
	if cfg.Gateway.PublicURL == "" {
		cfg.Gateway.PublicURL = DefaultPublicURL
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "none"
	}
	if cfg.Agents.Defaults.Model == "" {
		cfg.Agents.Defaults.Model = DefaultModel
	}
	if cfg.Agents.Defaults.Provider == "" {
		cfg.Agents.Defaults.Provider = DefaultProvider
	}
	if cfg.Agents.Defaults.MaxTokens == 0 {
		cfg.Agents.Defaults.MaxTokens = 4000
	}
	if cfg.Agents.Defaults.Temperature == nil {
		t := 0.7
		cfg.Agents.Defaults.Temperature = &t
	}
	if cfg.Orchestrator.RoutingWorkflow == "" {
		cfg.Orchestrator.RoutingWorkflow = DefaultRoutingWorkflow
	}
	if cfg.Orchestrator.MainWorkflow == "" {
		cfg.Orchestrator.MainWorkflow = DefaultMainWorkflow
	}
	if cfg.Providers.Google.Location == "" {
		cfg.Providers.Google.Location = "us-central1"
	}
	if cfg.Providers.Retry.MaxAttempts == 0 {
		cfg.Providers.Retry.MaxAttempts = 3
	}
	if cfg.Providers.Retry.BaseDelayMs == 0 {
		cfg.Providers.Retry.BaseDelayMs = 1000
	}
	if cfg.Providers.Retry.MaxDelayMs == 0 {
		cfg.Providers.Retry.MaxDelayMs = 30000
	}
	if cfg.Tools.WeatherUserAgent == "" {
		cfg.Tools.WeatherUserAgent = "agentdesk-weather/1.0"
	}
	if cfg.Tools.HTTPRetries == 0 {
		cfg.Tools.HTTPRetries = 3
	}
	if cfg.Tools.HTTPTimeoutSecs == 0 {
		cfg.Tools.HTTPTimeoutSecs = 30
	}
	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = "sqlite"
	}
	if cfg.Memory.TopK == 0 {
		cfg.Memory.TopK = DefaultMemoryTopK
	}
	if cfg.Tasks.Store == "" {
		cfg.Tasks.Store = "memory"
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "sqlite"
	}
	if cfg.Session.TimeoutSeconds == 0 {
		cfg.Session.TimeoutSeconds = DefaultSessionTimeout
	}
	if len(cfg.Moderation.SafeDirs) == 0 {
		cfg.Moderation.SafeDirs = append([]string(nil), DefaultSafeDirs...)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// setFromEnv assigns the first non-empty variable among names to dst.
func setFromEnv(dst *string, names ...string) {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			*dst = v
			return
		}
	}
}

func envTrue(name string) (bool, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return false, false
	}
	return strings.EqualFold(v, "true") || v == "1", true
}

// applyEnvOverrides reads AGENTDESK_* variables plus the conventional
// provider and deployment variables.
func applyEnvOverrides(cfg *Config) {
	if v := firstEnv("AGENTDESK_GATEWAY_PORT", "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := firstEnv("AGENTDESK_GATEWAY_HOST", "HOST"); v != "" {
		cfg.Gateway.Bind = "custom"
		cfg.Gateway.CustomBindHost = v
	}
	setFromEnv(&cfg.Gateway.Bind, "AGENTDESK_GATEWAY_BIND")
	setFromEnv(&cfg.Gateway.PublicURL, "AGENTDESK_PUBLIC_URL", "APP_URL")
	setFromEnv(&cfg.Gateway.Auth.Mode, "AGENTDESK_GATEWAY_AUTH")

	setFromEnv(&cfg.Agents.Dir, "AGENTDESK_AGENTS_DIR")
	setFromEnv(&cfg.Agents.Default, "AGENTDESK_DEFAULT_AGENT")
	setFromEnv(&cfg.Agents.Defaults.Model, "AGENTDESK_DEFAULT_MODEL", "DEFAULT_MODEL")
	setFromEnv(&cfg.Agents.Defaults.Provider, "AGENTDESK_DEFAULT_PROVIDER", "DEFAULT_PROVIDER")
	setFromEnv(&cfg.Orchestrator.Dir, "AGENTDESK_ORCHESTRATOR_DIR")

	setFromEnv(&cfg.Providers.Google.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	if v, ok := envTrue("GOOGLE_GENAI_USE_VERTEXAI"); ok {
		cfg.Providers.Google.UseVertex = v
	}
	setFromEnv(&cfg.Providers.Google.Project, "GOOGLE_CLOUD_PROJECT")
	setFromEnv(&cfg.Providers.Google.Location, "GOOGLE_CLOUD_LOCATION")
	setFromEnv(&cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setFromEnv(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setFromEnv(&cfg.Providers.OpenAI.BaseURL, "OPENAI_BASE_URL")

	setFromEnv(&cfg.Tools.SerperAPIKey, "SERPER_API_KEY")
	setFromEnv(&cfg.Tools.BraveAPIKey, "BRAVE_SEARCH_API_KEY", "BRAVE_API_KEY")

	setFromEnv(&cfg.Memory.Backend, "AGENTDESK_MEMORY_BACKEND")
	setFromEnv(&cfg.Memory.EngineID, "GOOGLE_AGENT_MEMORY")
	setFromEnv(&cfg.Memory.RedisURL, "REDIS_URL")

	if v, ok := envTrue("USE_ALLOY_DB"); ok && v {
		cfg.Tasks.Store = "postgres"
	}
	setFromEnv(&cfg.Tasks.Postgres.DSN, "AGENTDESK_TASKS_DSN")
	setFromEnv(&cfg.Tasks.Postgres.Instance, "DB_INSTANCE")
	setFromEnv(&cfg.Tasks.Postgres.Name, "DB_NAME")
	setFromEnv(&cfg.Tasks.Postgres.User, "DB_USER")
	setFromEnv(&cfg.Tasks.Postgres.Password, "DB_PASS")

	if v := os.Getenv("AGENTDESK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	setFromEnv(&cfg.Logging.Format, "AGENTDESK_LOG_FORMAT")
}

func firstEnv(names ...string) string {
	var v string
	setFromEnv(&v, names...)
	return v
}
