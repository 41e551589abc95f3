package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Fact is one remembered statement about a user, scoped to a memory engine.
type Fact struct {
	ID        string    `json:"id"`
	EngineID  string    `json:"engineId"`
	UserID    string    `json:"userId"`
	Fact      string    `json:"fact"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Rank      float64   `json:"rank,omitempty"` // FTS5 bm25 rank (search results only)
}

// Engine is a named memory bank.
type Engine struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MemoryStore keeps facts with full-text search via SQLite FTS5.
type MemoryStore struct {
	db *DB
}

// NewMemoryStore creates a memory store using the given database.
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// CreateEngine registers a new engine and returns it.
func (m *MemoryStore) CreateEngine(displayName string) (*Engine, error) {
	e := &Engine{ID: uuid.New().String(), DisplayName: displayName, CreatedAt: time.Now().UTC()}
	_, err := m.db.sql.Exec(
		`INSERT INTO memory_engines (id, display_name, created_at) VALUES (?, ?, ?)`,
		e.ID, e.DisplayName, e.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("creating memory engine: %w", err)
	}
	return e, nil
}

// Engines lists all engines, oldest first.
func (m *MemoryStore) Engines() ([]Engine, error) {
	rows, err := m.db.sql.Query(`SELECT id, display_name, created_at FROM memory_engines ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Engine
	for rows.Next() {
		var e Engine
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DisplayName, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Store inserts a fact, or updates it when f.ID already exists.
func (m *MemoryStore) Store(f Fact) (*Fact, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := m.db.sql.Exec(
		`INSERT INTO memories (id, engine_id, user_id, fact, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   fact = excluded.fact,
		   updated_at = excluded.updated_at`,
		f.ID, f.EngineID, f.UserID, f.Fact, now.Format(time.DateTime), now.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("storing memory: %w", err)
	}
	return &f, nil
}

// Search ranks a user's facts against query with bm25. Limit of 0
// defaults to 10.
func (m *MemoryStore) Search(engineID, userID, query string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 10
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := m.db.sql.Query(
		`SELECT m.id, m.engine_id, m.user_id, m.fact, m.created_at, m.updated_at, bm25(memories_fts)
		 FROM memories_fts
		 JOIN memories m ON m.rowid = memories_fts.rowid
		 WHERE memories_fts MATCH ?
		   AND m.engine_id = ?
		   AND m.user_id = ?
		 ORDER BY bm25(memories_fts)
		 LIMIT ?`,
		match, engineID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// List returns a user's facts, newest first. Limit of 0 defaults to 100.
func (m *MemoryStore) List(engineID, userID string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := m.db.sql.Query(
		`SELECT id, engine_id, user_id, fact, created_at, updated_at, 0
		 FROM memories WHERE engine_id = ? AND user_id = ?
		 ORDER BY updated_at DESC, rowid DESC LIMIT ?`,
		engineID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// Delete removes a fact by ID.
func (m *MemoryStore) Delete(id string) error {
	_, err := m.db.sql.Exec(`DELETE FROM memories WHERE id = ?`, id)
	return err
}

// DeleteUser removes every fact stored for a user in an engine.
func (m *MemoryStore) DeleteUser(engineID, userID string) error {
	_, err := m.db.sql.Exec(`DELETE FROM memories WHERE engine_id = ? AND user_id = ?`, engineID, userID)
	return err
}

// ftsQuery turns free text into an FTS5 OR-query of quoted terms so
// punctuation in user input cannot break the MATCH syntax.
func ftsQuery(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+strings.ToLower(w)+`"`)
	}
	return strings.Join(terms, " OR ")
}

func scanFacts(rows *sql.Rows) ([]Fact, error) {
	var facts []Fact
	for rows.Next() {
		var f Fact
		var createdAt, updatedAt string
		if err := rows.Scan(&f.ID, &f.EngineID, &f.UserID, &f.Fact, &createdAt, &updatedAt, &f.Rank); err != nil {
			return nil, err
		}
		f.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		f.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
