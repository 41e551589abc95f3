package memory

import "errors"

// Request is one memory command as given on the command line.
type Request struct {
	CreateEngine bool
	CreateMemory bool
	GetMemory    bool
	Search       bool

	EngineID    string
	UserID      string
	Fact        string
	Query       string
	DisplayName string
}

// Validate checks that exactly one action is requested and that it has the
// arguments it needs.
func (r Request) Validate() error {
	n := 0
	for _, set := range []bool{r.CreateEngine, r.CreateMemory, r.GetMemory, r.Search} {
		if set {
			n++
		}
	}
	if n != 1 {
		return errors.New("❌ Error: choose exactly one of --create-agent, --create-memory, --get-memory or --search")
	}

	switch {
	case r.CreateEngine:
		return nil
	case r.CreateMemory:
		if r.UserID == "" {
			return errors.New("❌ Error: --user-id is required for --create-memory")
		}
		if r.EngineID == "" {
			return errNoEngine
		}
		if r.Fact == "" {
			return errors.New("❌ Error: --fact is required for --create-memory")
		}
	case r.GetMemory:
		if r.UserID == "" {
			return errors.New("❌ Error: --user-id is required for --get-memory")
		}
		if r.EngineID == "" {
			return errNoEngine
		}
	case r.Search:
		if r.UserID == "" {
			return errors.New("❌ Error: --user-id is required for --search")
		}
		if r.Query == "" {
			return errors.New("❌ Error: --query is required for --search")
		}
		if r.EngineID == "" {
			return errNoEngine
		}
	}
	return nil
}

var errNoEngine = errors.New("❌ Error: No agent engine ID provided. Use --engine-id")
