package db

func (db *DB) initSchema() error {
	schema := `
	-- Folders group conversations; the default folder is seeded on open
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Conversations table
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		source_id TEXT,
		title TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at REAL NOT NULL,
		folder_id TEXT NOT NULL REFERENCES folders(id),
		message_count INTEGER DEFAULT 0,
		imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_source ON conversations(source);
	CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at);
	CREATE INDEX IF NOT EXISTS idx_conversations_folder_id ON conversations(folder_id);

	-- Messages table, in conversational order by sequence
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		timestamp REAL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
		UNIQUE (conversation_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);

	-- Tags table
	CREATE TABLE IF NOT EXISTS conversation_tags (
		conversation_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (conversation_id, tag),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_tags_tag ON conversation_tags(tag);

	-- Import log table
	CREATE TABLE IF NOT EXISTS import_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL,
		file_size INTEGER,
		format TEXT,
		imported_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		conversations_found INTEGER DEFAULT 0,
		conversations_imported INTEGER DEFAULT 0,
		duplicates_skipped INTEGER DEFAULT 0,
		status TEXT CHECK(status IN ('success', 'partial', 'failed')),
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_import_log_imported_at ON import_log(imported_at);

	-- FTS5 tables for full-text search
	-- Natural language search with porter stemming
	CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		content,
		content=messages,
		content_rowid=id,
		tokenize='porter unicode61'
	);

	-- Code search without stemming (preserves symbols, camelCase)
	CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts_code USING fts5(
		content,
		content=messages,
		content_rowid=id,
		tokenize='unicode61'
	);

	-- Triggers to keep FTS in sync
	CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
		INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
		INSERT INTO messages_fts_code(rowid, content) VALUES (new.id, new.content);
	END;

	CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.id, old.content);
		INSERT INTO messages_fts_code(messages_fts_code, rowid, content) VALUES ('delete', old.id, old.content);
	END;

	CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.id, old.content);
		INSERT INTO messages_fts_code(messages_fts_code, rowid, content) VALUES ('delete', old.id, old.content);
		INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
		INSERT INTO messages_fts_code(rowid, content) VALUES (new.id, new.content);
	END;
	`

	_, err := db.conn.Exec(schema)
	return err
}
