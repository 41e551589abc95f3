package config

// Config is the root configuration for agentdesk.
type Config struct {
	Gateway      GatewayConfig      `yaml:"gateway,omitempty"`
	Agents       AgentsConfig       `yaml:"agents,omitempty"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator,omitempty"`
	Providers    ProvidersConfig    `yaml:"providers,omitempty"`
	Tools        ToolsConfig        `yaml:"tools,omitempty"`
	Memory       MemoryConfig       `yaml:"memory,omitempty"`
	Tasks        TasksConfig        `yaml:"tasks,omitempty"`
	Session      SessionConfig      `yaml:"session,omitempty"`
	Moderation   ModerationConfig   `yaml:"moderation,omitempty"`
	Logging      LoggingConfig      `yaml:"logging,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int              `yaml:"port,omitempty"`
	Bind           string           `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string           `yaml:"customBindHost,omitempty"`
	PublicURL      string           `yaml:"publicUrl,omitempty"`
	Auth           GatewayAuth      `yaml:"auth,omitempty"`
	TLS            GatewayTLS       `yaml:"tls,omitempty"`
	ControlUI      GatewayControlUI `yaml:"controlUi,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "none" | "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// GatewayControlUI lists browser origins allowed to call the gateway.
type GatewayControlUI struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// AgentsConfig points at the markdown agent tree and the defaults applied
// to definitions that omit a setting.
type AgentsConfig struct {
	Dir       string        `yaml:"dir,omitempty"`
	Default   string        `yaml:"default,omitempty"` // agent served by /chat
	Fallbacks []string      `yaml:"fallbacks,omitempty"`
	Defaults  AgentDefaults `yaml:"defaults,omitempty"`
}

// AgentDefaults apply to every agent definition.
type AgentDefaults struct {
	Model               string   `yaml:"model,omitempty"`
	Provider            string   `yaml:"provider,omitempty"`
	MaxTokens           int      `yaml:"maxTokens,omitempty"`
	Temperature         *float64 `yaml:"temperature,omitempty"`
	ResponseTokensLimit int      `yaml:"responseTokensLimit,omitempty"`
}

// OrchestratorConfig locates workflow prompts and names the special ones.
type OrchestratorConfig struct {
	Dir             string `yaml:"dir,omitempty"`
	RoutingWorkflow string `yaml:"routingWorkflow,omitempty"`
	MainWorkflow    string `yaml:"mainWorkflow,omitempty"`
	DefaultCategory string `yaml:"defaultCategory,omitempty"`
}

// ProvidersConfig holds model provider credentials.
type ProvidersConfig struct {
	Google    GoogleProvider `yaml:"google,omitempty"`
	Anthropic APIProvider    `yaml:"anthropic,omitempty"`
	OpenAI    APIProvider    `yaml:"openai,omitempty"`
	Retry     RetryConfig    `yaml:"retry,omitempty"`
}

// GoogleProvider selects between the Gemini API and Vertex AI.
type GoogleProvider struct {
	APIKey    string `yaml:"apiKey,omitempty"`
	UseVertex bool   `yaml:"useVertex,omitempty"`
	Project   string `yaml:"project,omitempty"`
	Location  string `yaml:"location,omitempty"`
}

// APIProvider is a key plus optional endpoint override.
type APIProvider struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// RetryConfig tunes exponential backoff for model and HTTP calls.
type RetryConfig struct {
	MaxAttempts int `yaml:"maxAttempts,omitempty"`
	BaseDelayMs int `yaml:"baseDelayMs,omitempty"`
	MaxDelayMs  int `yaml:"maxDelayMs,omitempty"`
}

// ToolsConfig holds credentials and transport settings for built-in tools.
type ToolsConfig struct {
	SerperAPIKey     string `yaml:"serperApiKey,omitempty"`
	BraveAPIKey      string `yaml:"braveApiKey,omitempty"`
	WeatherUserAgent string `yaml:"weatherUserAgent,omitempty"`
	HTTPRetries      int    `yaml:"httpRetries,omitempty"`
	HTTPTimeoutSecs  int    `yaml:"httpTimeoutSeconds,omitempty"`
}

// MemoryConfig selects the memory bank backend.
type MemoryConfig struct {
	Backend  string `yaml:"backend,omitempty"` // "sqlite" | "redis" | "vertex" | "memory"
	EngineID string `yaml:"engineId,omitempty"`
	RedisURL string `yaml:"redisUrl,omitempty"`
	TopK     int    `yaml:"topK,omitempty"`
}

// TasksConfig selects where A2A tasks are persisted.
type TasksConfig struct {
	Store    string         `yaml:"store,omitempty"` // "memory" | "postgres"
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// PostgresConfig describes the database behind the durable task store.
type PostgresConfig struct {
	DSN      string `yaml:"dsn,omitempty"`
	Instance string `yaml:"instance,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Name     string `yaml:"name,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// SessionConfig defines session behavior.
type SessionConfig struct {
	Store          string `yaml:"store,omitempty"` // "sqlite" | "memory"
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// ModerationConfig restricts which directories the file scanner may read.
type ModerationConfig struct {
	SafeDirs []string `yaml:"safeDirs,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "console" | "json"
}
