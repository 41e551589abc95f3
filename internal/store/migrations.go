package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				id              TEXT PRIMARY KEY,
				key_str         TEXT NOT NULL,
				surface         TEXT NOT NULL,
				user_id         TEXT NOT NULL DEFAULT '',
				conversation_id TEXT NOT NULL,
				agent_id        TEXT NOT NULL,
				created_at      TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE UNIQUE INDEX idx_sessions_key ON sessions (key_str, agent_id);
			CREATE INDEX idx_sessions_user ON sessions (user_id);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				timestamp   TEXT NOT NULL DEFAULT (datetime('now')),
				tool_calls  TEXT
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create memory engines and facts with FTS5",
		SQL: `
			CREATE TABLE memory_engines (
				id           TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE memories (
				id          TEXT PRIMARY KEY,
				engine_id   TEXT NOT NULL,
				user_id     TEXT NOT NULL,
				fact        TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_memories_scope ON memories (engine_id, user_id);

			CREATE VIRTUAL TABLE memories_fts USING fts5(
				fact,
				content='memories',
				content_rowid='rowid'
			);

			CREATE TRIGGER memories_ai AFTER INSERT ON memories BEGIN
				INSERT INTO memories_fts(rowid, fact) VALUES (new.rowid, new.fact);
			END;

			CREATE TRIGGER memories_ad AFTER DELETE ON memories BEGIN
				INSERT INTO memories_fts(memories_fts, rowid, fact) VALUES ('delete', old.rowid, old.fact);
			END;

			CREATE TRIGGER memories_au AFTER UPDATE ON memories BEGIN
				INSERT INTO memories_fts(memories_fts, rowid, fact) VALUES ('delete', old.rowid, old.fact);
				INSERT INTO memories_fts(rowid, fact) VALUES (new.rowid, new.fact);
			END;
		`,
	},
}
