package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/memory"
	"github.com/soyeahso/agentdesk/internal/moderation"
)

// Deps are the optional collaborators of the built-in tools.
type Deps struct {
	HTTP      *retryablehttp.Client // nil builds one from cfg.Tools
	Endpoints Endpoints
	Now       func() time.Time

	Bank     memory.Bank // nil disables load_memory/save_memory
	EngineID string

	Scanner *moderation.Scanner // nil disables profanity_scanner
}

// Builtins registers every built-in tool that deps allow.
func Builtins(cfg *config.Config, deps Deps, log *logging.Logger) *agent.ToolRegistry {
	client := deps.HTTP
	if client == nil {
		client = NewHTTPClient(cfg.Tools, log)
	}

	reg := agent.NewToolRegistry()
	register := func(ts []agent.Tool) {
		for _, t := range ts {
			reg.Register(t)
		}
	}

	register(NewWeb(client, deps.Endpoints, cfg.Tools.SerperAPIKey, cfg.Tools.BraveAPIKey, log).Tools())
	register(NewWeather(client, deps.Endpoints.Weather, cfg.Tools.WeatherUserAgent, log).Tools())
	register(ClockTools(deps.Now))
	register(TextTools(log))

	engine := deps.EngineID
	if engine == "" {
		engine = cfg.Memory.EngineID
	}
	if deps.Bank != nil && engine != "" {
		register(MemoryTools(deps.Bank, engine, cfg.Memory.TopK, log))
	}
	if deps.Scanner != nil {
		reg.Register(deps.Scanner.Tool())
	}

	log.Debug().Strs("tools", reg.Names()).Msg("registered built-in tools")
	return reg
}

// decode unmarshals tool input. Empty input is an empty object.
func decode(input string, v any) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func errRequired(names ...string) error {
	if len(names) == 1 {
		return fmt.Errorf("%s is required", names[0])
	}
	return fmt.Errorf("%s are required", strings.Join(names, " and "))
}
