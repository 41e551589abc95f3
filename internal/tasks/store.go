package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/soyeahso/agentdesk/internal/config"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// ErrTaskNotFound is returned for unknown task ids.
var ErrTaskNotFound = errors.New("task not found")

// Store persists tasks.
type Store interface {
	Save(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps tasks in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

func (s *MemoryStore) Save(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

// Open returns the store selected by cfg.Tasks.Store: "postgres" or the
// in-memory default.
func Open(ctx context.Context, cfg config.TasksConfig, log *logging.Logger) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		log.Info().Msg("using in-memory task store")
		return NewMemoryStore(), nil
	case "postgres":
		if missing := cfg.Postgres.Missing(); len(missing) > 0 {
			return nil, fmt.Errorf("Missing required environment variables: %v", missing)
		}
		log.Info().Msg("setting up postgres task store")
		s, err := NewPostgresStore(ctx, cfg.Postgres.ConnString(), log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown task store %q", cfg.Store)
	}
}
