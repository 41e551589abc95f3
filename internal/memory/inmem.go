package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBank keeps memories in process. Useful for tests and one-off runs.
type MemoryBank struct {
	mu      sync.RWMutex
	engines map[string]string
	mems    map[string][]Memory // engine + "\x00" + user
}

// NewMemoryBank returns an empty in-process bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{engines: make(map[string]string), mems: make(map[string][]Memory)}
}

func (b *MemoryBank) CreateEngine(_ context.Context, displayName string) (string, error) {
	id := uuid.NewString()
	b.mu.Lock()
	b.engines[id] = displayName
	b.mu.Unlock()
	return id, nil
}

func (b *MemoryBank) Create(_ context.Context, engineID, userID, fact string) (Memory, error) {
	if engineID == "" {
		return Memory{}, ErrEngineRequired
	}
	m := Memory{
		Name:       engineID + "/memories/" + uuid.NewString(),
		Fact:       fact,
		UserID:     userID,
		CreateTime: time.Now().UTC(),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	k := engineID + "\x00" + userID
	b.mems[k] = append(b.mems[k], m)
	return m, nil
}

func (b *MemoryBank) List(_ context.Context, engineID, userID string) ([]Memory, error) {
	if engineID == "" {
		return nil, ErrEngineRequired
	}
	b.mu.RLock()
	out := slices.Clone(b.mems[engineID+"\x00"+userID])
	b.mu.RUnlock()
	slices.Reverse(out)
	return out, nil
}

func (b *MemoryBank) Search(ctx context.Context, engineID, userID, query string, topK int) ([]Memory, error) {
	all, err := b.List(ctx, engineID, userID)
	if err != nil {
		return nil, err
	}
	return rank(all, query, topK), nil
}
