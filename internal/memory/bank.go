// Package memory stores per-user facts in a memory bank and retrieves them
// by listing or by relevance to a query.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/soyeahso/agentdesk/internal/store"
)

// DefaultTopK is the number of memories a search returns when topK <= 0.
const DefaultTopK = config.DefaultMemoryTopK

// Memory is one stored fact.
type Memory struct {
	Name       string    `json:"name"`
	Fact       string    `json:"fact"`
	UserID     string    `json:"userId"`
	CreateTime time.Time `json:"createTime"`
	// Score is the relevance for search results; higher is better.
	Score float64 `json:"score,omitempty"`
}

// Bank is a memory backend.
type Bank interface {
	CreateEngine(ctx context.Context, displayName string) (string, error)
	Create(ctx context.Context, engineID, userID, fact string) (Memory, error)
	List(ctx context.Context, engineID, userID string) ([]Memory, error)
	Search(ctx context.Context, engineID, userID, query string, topK int) ([]Memory, error)
}

// ErrEngineRequired is returned by operations called without an engine.
var ErrEngineRequired = errors.New("memory engine id is required")

// FormatFacts renders memories as "- fact" lines.
func FormatFacts(mems []Memory) string {
	lines := make([]string, 0, len(mems))
	for _, m := range mems {
		if m.Fact == "" {
			continue
		}
		lines = append(lines, "- "+m.Fact)
	}
	return strings.Join(lines, "\n")
}

// Recall lists a user's memories, or searches them when query is set, and
// formats the result. No memories yields "".
func Recall(ctx context.Context, b Bank, engineID, userID, query string, topK int) (string, error) {
	var (
		mems []Memory
		err  error
	)
	if strings.TrimSpace(query) == "" {
		mems, err = b.List(ctx, engineID, userID)
	} else {
		mems, err = b.Search(ctx, engineID, userID, query, topK)
	}
	if err != nil {
		return "", err
	}
	return FormatFacts(mems), nil
}

// Open builds the bank selected by cfg.Memory.Backend. db backs the sqlite
// backend and may be nil for the others.
func Open(ctx context.Context, cfg *config.Config, db *store.DB, log *logging.Logger) (Bank, error) {
	switch cfg.Memory.Backend {
	case "", "sqlite":
		if db == nil {
			return nil, errors.New("sqlite memory backend needs a database")
		}
		return NewSQLiteBank(store.NewMemoryStore(db)), nil
	case "memory":
		return NewMemoryBank(), nil
	case "redis":
		b, err := NewRedisBankFromURL(cfg.Memory.RedisURL, "agentdesk")
		if err != nil {
			return nil, err
		}
		return b, nil
	case "vertex":
		b, err := NewVertexBank(ctx, VertexOptions{
			Project:  cfg.Providers.Google.Project,
			Location: cfg.Providers.Google.Location,
		}, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

func topKOrDefault(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	return k
}

// terms lowercases text and splits it on anything that is not a letter or
// digit.
func terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// termScore is the fraction of query terms found in fact.
func termScore(query []string, fact string) float64 {
	if len(query) == 0 {
		return 0
	}
	have := terms(fact)
	hits := 0
	for _, q := range query {
		if slices.Contains(have, q) {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// rank scores mems against query, drops non-matches and keeps the best
// topK. Ties keep the newer memory first.
func rank(mems []Memory, query string, topK int) []Memory {
	q := terms(query)
	var out []Memory
	for _, m := range mems {
		if s := termScore(q, m.Fact); s > 0 {
			m.Score = s
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b Memory) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return b.CreateTime.Compare(a.CreateTime)
	})
	if k := topKOrDefault(topK); len(out) > k {
		out = out[:k]
	}
	return out
}

func newestFirst(mems []Memory) {
	slices.SortStableFunc(mems, func(a, b Memory) int {
		return b.CreateTime.Compare(a.CreateTime)
	})
}
