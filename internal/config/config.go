package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Built-in defaults shared with the catalog and orchestrator.
const (
	DefaultModel           = "gemini-2.5-pro"
	DefaultProvider        = "google"
	DefaultPort            = 8080
	DefaultPublicURL       = "http://localhost:8080"
	DefaultRoutingWorkflow = "routing"
	DefaultMainWorkflow    = "orchestrator_main"
	DefaultSessionTimeout  = 3600
	DefaultMemoryTopK      = 10
)

// DefaultSafeDirs are the directories the moderation scanner may read.
var DefaultSafeDirs = []string{"/tmp/safe_files_1", "/tmp/safe_files_2"}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// ConnString returns the connection string for the task database. An explicit DSN
// wins; otherwise one is assembled from the instance host and credentials.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Instance, strconv.Itoa(port)),
		Path:   "/" + p.Name,
	}
	return u.String()
}

// Missing lists the DB_* variables that must be set before the task
// database can be used.
func (p PostgresConfig) Missing() []string {
	if p.DSN != "" {
		return nil
	}
	var missing []string
	if p.Instance == "" {
		missing = append(missing, "DB_INSTANCE")
	}
	if p.Name == "" {
		missing = append(missing, "DB_NAME")
	}
	if p.User == "" {
		missing = append(missing, "DB_USER")
	}
	if p.Password == "" {
		missing = append(missing, "DB_PASS")
	}
	return missing
}
