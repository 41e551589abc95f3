package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/agentdesk/internal/domain"
	"github.com/soyeahso/agentdesk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(MemoryPath, logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db.SQL())
	assert.Equal(t, MemoryPath, db.Path())
}

func TestOpen_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agentdesk.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()
	assert.FileExists(t, path)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate())

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"sessions", "messages", "memory_engines", "memories", "memories_fts"} {
		var name string
		err := db.sql.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

// --- Session store tests ---

var testKey = domain.SessionKey{Surface: "http", UserID: "alice", ConversationID: "trip"}

func TestSessionStore_GetOrCreate(t *testing.T) {
	ss := NewSQLiteSessionStore(testDB(t))

	s1 := ss.GetOrCreate(testKey, "travel")
	require.NotNil(t, s1)
	assert.NotEmpty(t, s1.ID)

	s2 := ss.GetOrCreate(testKey, "travel")
	assert.Equal(t, s1.ID, s2.ID)
	assert.Equal(t, testKey, s2.Key)

	other := ss.GetOrCreate(testKey, "finance")
	assert.NotEqual(t, s1.ID, other.ID)

	diffKey := ss.GetOrCreate(domain.SessionKey{Surface: "http", UserID: "bob", ConversationID: "trip"}, "travel")
	assert.NotEqual(t, s1.ID, diffKey.ID)
}

func TestSessionStore_AppendGetHistory(t *testing.T) {
	ss := NewSQLiteSessionStore(testDB(t))
	sess := ss.GetOrCreate(testKey, "travel")

	ss.Append(sess.ID, domain.Message{Role: "user", Content: "Book Paris", Timestamp: time.Now()})
	ss.Append(sess.ID, domain.Message{
		Role:      "assistant",
		Content:   "Done",
		ToolCalls: []domain.ToolCall{{ID: "t1", Name: "book", Input: "{}", Output: "ok"}},
	})

	got := ss.Get(sess.ID)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Book Paris", got.Messages[0].Content)
	require.Len(t, got.Messages[1].ToolCalls, 1)
	assert.Equal(t, "book", got.Messages[1].ToolCalls[0].Name)

	hist := ss.History(sess.ID)
	require.Len(t, hist, 2)
	assert.Equal(t, "assistant", hist[1].Role)
	assert.Empty(t, ss.History("missing"))
}

func TestSessionStore_GetNotFound(t *testing.T) {
	ss := NewSQLiteSessionStore(testDB(t))
	assert.Nil(t, ss.Get("nope"))
}

func TestSessionStore_ListAndDelete(t *testing.T) {
	ss := NewSQLiteSessionStore(testDB(t))
	assert.Empty(t, ss.List())

	sess := ss.GetOrCreate(testKey, "travel")
	ss.Append(sess.ID, domain.Message{Role: "user", Content: "hi"})
	assert.Equal(t, []string{sess.ID}, ss.List())

	assert.True(t, ss.Delete(sess.ID))
	assert.False(t, ss.Delete(sess.ID))
	assert.Empty(t, ss.List())
	assert.Empty(t, ss.History(sess.ID))
}

// --- Memory store tests ---

func TestMemoryStore_Engines(t *testing.T) {
	ms := NewMemoryStore(testDB(t))
	e, err := ms.CreateEngine("travel memories")
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)

	engines, err := ms.Engines()
	require.NoError(t, err)
	require.Len(t, engines, 1)
	assert.Equal(t, "travel memories", engines[0].DisplayName)
}

func TestMemoryStore_StoreAndList(t *testing.T) {
	ms := NewMemoryStore(testDB(t))

	f, err := ms.Store(Fact{EngineID: "e1", UserID: "alice", Fact: "Prefers window seats"})
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)

	_, err = ms.Store(Fact{EngineID: "e1", UserID: "bob", Fact: "Vegetarian"})
	require.NoError(t, err)

	facts, err := ms.List("e1", "alice", 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Prefers window seats", facts[0].Fact)
}

func TestMemoryStore_Upsert(t *testing.T) {
	ms := NewMemoryStore(testDB(t))
	f, err := ms.Store(Fact{EngineID: "e1", UserID: "alice", Fact: "Version 1"})
	require.NoError(t, err)

	_, err = ms.Store(Fact{ID: f.ID, EngineID: "e1", UserID: "alice", Fact: "Version 2"})
	require.NoError(t, err)

	facts, err := ms.List("e1", "alice", 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Version 2", facts[0].Fact)

	found, err := ms.Search("e1", "alice", "version", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Version 2", found[0].Fact)
}

func TestMemoryStore_SearchRanksAndScopes(t *testing.T) {
	ms := NewMemoryStore(testDB(t))
	for _, fact := range []string{
		"Alice loves hiking in the Alps",
		"Alice is allergic to peanuts",
		"Alice's favourite city is Lisbon",
	} {
		_, err := ms.Store(Fact{EngineID: "e1", UserID: "alice", Fact: fact})
		require.NoError(t, err)
	}
	_, err := ms.Store(Fact{EngineID: "e1", UserID: "bob", Fact: "Bob loves hiking too"})
	require.NoError(t, err)

	results, err := ms.Search("e1", "alice", "Where does she like hiking?", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Alice loves hiking in the Alps", results[0].Fact)

	none, err := ms.Search("e1", "alice", "xyzzy", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := ms.Search("e1", "alice", "?!", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_DeleteKeepsIndexInSync(t *testing.T) {
	ms := NewMemoryStore(testDB(t))
	f, err := ms.Store(Fact{EngineID: "e1", UserID: "alice", Fact: "Owns a red bicycle"})
	require.NoError(t, err)

	require.NoError(t, ms.Delete(f.ID))
	results, err := ms.Search("e1", "alice", "bicycle", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = ms.Store(Fact{EngineID: "e1", UserID: "alice", Fact: "Owns a blue car"})
	require.NoError(t, err)
	require.NoError(t, ms.DeleteUser("e1", "alice"))
	facts, err := ms.List("e1", "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"where" OR "is" OR "alice"`, ftsQuery("Where is Alice?"))
	assert.Equal(t, "", ftsQuery("  ?! "))
}
