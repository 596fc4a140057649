package sqlite

// schemaSQL creates the document table, its filter indexes, and the FTS5
// virtual table kept in sync by triggers. All statements are idempotent so
// Open can run them on every start.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	tenant_id           TEXT NOT NULL DEFAULT '',
	session_id          TEXT NOT NULL DEFAULT '',
	source              TEXT NOT NULL DEFAULT '',
	timestamp           TIMESTAMP NOT NULL,
	version             INTEGER NOT NULL DEFAULT 1,
	is_active           INTEGER NOT NULL DEFAULT 1,
	expiry              TIMESTAMP,
	content             TEXT NOT NULL,
	searchable_content  TEXT NOT NULL DEFAULT '',
	semantic_summary    TEXT NOT NULL DEFAULT '',
	ontology_domain     TEXT NOT NULL DEFAULT '',
	ontology_category   TEXT NOT NULL DEFAULT '',
	ontology_concept_id TEXT NOT NULL DEFAULT '',
	ontology_confidence REAL NOT NULL DEFAULT 0,
	ai_confidence       REAL NOT NULL DEFAULT 0,
	hybrid_confidence   REAL NOT NULL DEFAULT 0,
	importance_score    REAL NOT NULL DEFAULT 0,
	semantic_tags       TEXT NOT NULL DEFAULT '',
	all_tags            TEXT NOT NULL DEFAULT '',
	entities_json       TEXT NOT NULL DEFAULT '',
	relations_json      TEXT NOT NULL DEFAULT '',
	context_json        TEXT NOT NULL DEFAULT '',
	hybrid_json         TEXT NOT NULL DEFAULT '',
	properties_json     TEXT NOT NULL DEFAULT '',
	vector              BLOB
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id, is_active);
CREATE INDEX IF NOT EXISTS idx_documents_domain ON documents(ontology_domain, ontology_category);
CREATE INDEX IF NOT EXISTS idx_documents_timestamp ON documents(timestamp);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	searchable_content,
	content='documents',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, searchable_content)
	VALUES (new.rowid, new.searchable_content);
END;

CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, searchable_content)
	VALUES ('delete', old.rowid, old.searchable_content);
END;

CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, searchable_content)
	VALUES ('delete', old.rowid, old.searchable_content);
	INSERT INTO documents_fts(rowid, searchable_content)
	VALUES (new.rowid, new.searchable_content);
END;
`
