package memory

import (
	"context"

	"github.com/soyeahso/agentdesk/internal/store"
)

// SQLiteBank stores memories in the local database and ranks searches with
// FTS5 bm25.
type SQLiteBank struct {
	store *store.MemoryStore
}

// NewSQLiteBank wraps a memory store.
func NewSQLiteBank(s *store.MemoryStore) *SQLiteBank {
	return &SQLiteBank{store: s}
}

func (b *SQLiteBank) CreateEngine(_ context.Context, displayName string) (string, error) {
	e, err := b.store.CreateEngine(displayName)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

func (b *SQLiteBank) Create(_ context.Context, engineID, userID, fact string) (Memory, error) {
	if engineID == "" {
		return Memory{}, ErrEngineRequired
	}
	f, err := b.store.Store(store.Fact{EngineID: engineID, UserID: userID, Fact: fact})
	if err != nil {
		return Memory{}, err
	}
	return fromFact(*f), nil
}

func (b *SQLiteBank) List(_ context.Context, engineID, userID string) ([]Memory, error) {
	if engineID == "" {
		return nil, ErrEngineRequired
	}
	facts, err := b.store.List(engineID, userID, 0)
	if err != nil {
		return nil, err
	}
	return fromFacts(facts), nil
}

func (b *SQLiteBank) Search(_ context.Context, engineID, userID, query string, topK int) ([]Memory, error) {
	if engineID == "" {
		return nil, ErrEngineRequired
	}
	facts, err := b.store.Search(engineID, userID, query, topKOrDefault(topK))
	if err != nil {
		return nil, err
	}
	return fromFacts(facts), nil
}

func fromFact(f store.Fact) Memory {
	// bm25 ranks are negative; flip so higher means more relevant.
	return Memory{Name: f.EngineID + "/memories/" + f.ID, Fact: f.Fact, UserID: f.UserID, CreateTime: f.CreatedAt, Score: -f.Rank}
}

func fromFacts(facts []store.Fact) []Memory {
	out := make([]Memory, 0, len(facts))
	for _, f := range facts {
		out = append(out, fromFact(f))
	}
	return out
}
