package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteStore opens (or creates) a SQLite database at path. Pass
// ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent batch ingestion.
	db.SetMaxOpenConns(1)
	return &SQLStore{db: db, dialect: DialectSQLite}, nil
}

func (s *SQLStore) initializeSQLite(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			resolution_status TEXT NOT NULL,
			canonical_id TEXT REFERENCES entities(id) ON DELETE SET NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aliases (
			entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			kind TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 1.0,
			PRIMARY KEY (entity_id, text)
		)`,
		`CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			content_digest TEXT NOT NULL,
			valid_at TIMESTAMP NOT NULL,
			invalid_at TIMESTAMP,
			status TEXT NOT NULL,
			superseded_by_id TEXT REFERENCES facts(id) ON DELETE SET NULL,
			derived_from_ids TEXT,
			corroborated_by_ids TEXT,
			confidence REAL NOT NULL DEFAULT 1.0,
			extraction_method TEXT,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (content_digest, valid_at)
		)`,
		`CREATE TABLE IF NOT EXISTS mentions (
			fact_id TEXT NOT NULL REFERENCES facts(id) ON DELETE CASCADE,
			entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			mention_text TEXT NOT NULL,
			mention_role TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 1.0,
			PRIMARY KEY (fact_id, entity_id, mention_text)
		)`,
		`CREATE TABLE IF NOT EXISTS fact_sources (
			fact_id TEXT NOT NULL REFERENCES facts(id) ON DELETE CASCADE,
			source_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			excerpt TEXT,
			confidence REAL NOT NULL DEFAULT 1.0,
			PRIMARY KEY (fact_id, source_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_validity ON facts (valid_at, invalid_at)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_status ON facts (status)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_entity ON mentions (entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_name ON entities (name)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize sqlite schema: %w", err)
		}
	}
	return nil
}
