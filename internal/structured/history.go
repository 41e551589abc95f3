package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// MaxHistory is how many calculations History keeps.
const MaxHistory = 10

// Entry is one recorded calculation.
type Entry struct {
	Question   string    `json:"question,omitempty"`
	Expression string    `json:"expression"`
	Result     float64   `json:"result"`
	Timestamp  time.Time `json:"timestamp"`
}

// History is a bounded list of calculations persisted as JSON.
type History struct {
	mu      sync.Mutex
	path    string
	entries []Entry
}

// NewHistory returns an empty history backed by path. An empty path keeps
// the history in memory only.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Add appends e, dropping the oldest entries beyond MaxHistory.
func (h *History) Add(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	h.entries = append(h.entries, e)
	if len(h.entries) > MaxHistory {
		h.entries = slices.Clone(h.entries[len(h.entries)-MaxHistory:])
	}
}

// Entries returns the entries, oldest first.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}

// Clear forgets every entry.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Load replaces the entries with the file contents. A missing file leaves
// the history empty.
func (h *History) Load() error {
	if h.path == "" {
		return nil
	}
	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse history %s: %w", h.path, err)
	}
	if len(entries) > MaxHistory {
		entries = entries[len(entries)-MaxHistory:]
	}

	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()
	return nil
}

// Save writes the entries to the history file.
func (h *History) Save() error {
	if h.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(h.Entries(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(h.path, data, 0o644)
}
