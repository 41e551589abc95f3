package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/agentdesk/internal/version.Version=0.3.0
//	  -X github.com/soyeahso/agentdesk/internal/version.Commit=abc123
//	  -X github.com/soyeahso/agentdesk/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// AgentCardVersion is the version advertised on A2A agent cards.
const AgentCardVersion = "1.0.0"

// Info returns a one-line build description.
func Info() string {
	return fmt.Sprintf("agentdesk %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on outbound HTTP calls.
func UserAgent() string {
	return "agentdesk/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
