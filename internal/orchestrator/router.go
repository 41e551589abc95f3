package orchestrator

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode"

	"github.com/soyeahso/agentdesk/internal/catalog"
	"github.com/soyeahso/agentdesk/internal/hooks"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// Route kinds.
const (
	KindCategory = "category"
	KindAgent    = "agent"
	KindDefault  = "default"
)

// Route methods.
const (
	MethodLLM      = "llm"
	MethodFallback = "fallback"
	MethodDefault  = "default"
)

// RouteDecision is where a query should go and how that was decided.
type RouteDecision struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Method string `json:"method"`
	// Raw is the routing model's reply, empty when it was not consulted or
	// failed.
	Raw string `json:"raw,omitempty"`
}

type routeCandidate struct {
	target string
	kind   string
	keys   []string // normalized
}

// Router picks a category or agent for a query with one model call and a
// string-match fallback.
type Router struct {
	orch            *Orchestrator
	specs           []catalog.Specialization
	candidates      []routeCandidate
	defaultCategory string
	log             *logging.Logger
}

// NewRouter builds a router over the given categories and agent names.
// An empty defaultCategory means the first category.
func NewRouter(o *Orchestrator, specs []catalog.Specialization, agents []string, defaultCategory string, log *logging.Logger) *Router {
	r := &Router{
		orch:            o,
		specs:           specs,
		defaultCategory: defaultCategory,
		log:             log.Sub("router"),
	}
	for _, s := range specs {
		r.candidates = append(r.candidates, routeCandidate{
			target: s.Slug,
			kind:   KindCategory,
			keys:   uniqueKeys(s.Slug, s.Title),
		})
	}
	for _, a := range agents {
		r.candidates = append(r.candidates, routeCandidate{
			target: a,
			kind:   KindAgent,
			keys:   uniqueKeys(a),
		})
	}
	return r
}

func uniqueKeys(names ...string) []string {
	var keys []string
	for _, n := range names {
		k := normalize(n)
		if k == "" {
			continue
		}
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Route decides where query goes.
func (r *Router) Route(ctx context.Context, query string) RouteDecision {
	d := r.route(ctx, query)
	r.log.Info().Str("target", d.Target).Str("kind", d.Kind).Str("method", d.Method).Msg("route decided")

	var h *hooks.Manager
	if r.orch != nil {
		h = r.orch.opts.Hooks
	}
	h.Emit(ctx, hooks.EventRouteDecided, map[string]any{
		"query":  query,
		"target": d.Target,
		"kind":   d.Kind,
		"method": d.Method,
	})
	return d
}

func (r *Router) route(ctx context.Context, query string) RouteDecision {
	raw, err := r.ask(ctx, query)
	if err != nil {
		r.log.Warn().Err(err).Msg("routing model unavailable, using fallback")
	} else if c, ok := r.matchReply(raw); ok {
		return RouteDecision{Target: c.target, Kind: c.kind, Method: MethodLLM, Raw: raw}
	}

	if c, ok := r.longestMatch(query); ok {
		return RouteDecision{Target: c.target, Kind: c.kind, Method: MethodFallback, Raw: raw}
	}
	return RouteDecision{Target: r.fallbackCategory(), Kind: KindDefault, Method: MethodDefault, Raw: raw}
}

func (r *Router) ask(ctx context.Context, query string) (string, error) {
	if r.orch == nil {
		return "", errNoOrchestrator
	}
	ra, err := r.orch.RoutingAgent(catalog.CategoriesOverview(r.specs), catalog.CategoryPattern(r.specs))
	if err != nil {
		return "", err
	}
	return ra.Ask(ctx, query)
}

var errNoOrchestrator = errors.New("no orchestrator configured")

// matchReply looks at labelled lines first, then the first non-empty line.
func (r *Router) matchReply(reply string) (routeCandidate, bool) {
	var first string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		lower := strings.ToLower(line)
		for _, label := range []string{"category:", "agent:"} {
			if rest, ok := strings.CutPrefix(lower, label); ok {
				if c, ok := r.exactOrLongest(rest); ok {
					return c, true
				}
			}
		}
	}
	if first == "" {
		return routeCandidate{}, false
	}
	return r.exactOrLongest(first)
}

func (r *Router) exactOrLongest(text string) (routeCandidate, bool) {
	n := normalize(text)
	for _, c := range r.candidates {
		for _, k := range c.keys {
			if k == n {
				return c, true
			}
		}
	}
	return r.longestMatch(text)
}

// longestMatch finds the candidate whose key is a substring of the
// normalized text. The longest key wins; on a tie the earlier candidate
// (categories first) is kept.
func (r *Router) longestMatch(text string) (routeCandidate, bool) {
	hay := normalize(text)
	var best routeCandidate
	bestLen := 0
	for _, c := range r.candidates {
		for _, k := range c.keys {
			if len(k) > bestLen && strings.Contains(hay, k) {
				best, bestLen = c, len(k)
			}
		}
	}
	return best, bestLen > 0
}

func (r *Router) fallbackCategory() string {
	if r.defaultCategory != "" {
		return r.defaultCategory
	}
	if len(r.specs) > 0 {
		return r.specs[0].Slug
	}
	return ""
}

// normalize lowercases s and collapses every run of non-alphanumeric
// characters into a single space.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, c := range strings.ToLower(s) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(c)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}
