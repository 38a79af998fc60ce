package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const defaultDBName = "fable.db"

// Open opens (creating if needed) the SQLite database with foreign keys on.
func Open(dataDir string) (*sql.DB, error) {
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", filepath.Join(dataDir, defaultDBName))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate applies the schema. Idempotent.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			story_type TEXT NOT NULL DEFAULT '',
			age_range TEXT NOT NULL,
			art_style TEXT NOT NULL,
			color_mode TEXT NOT NULL DEFAULT 'color',
			page_count INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			failed_at INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reference_page INTEGER NOT NULL DEFAULT 0,
			reference_mime TEXT NOT NULL DEFAULT '',
			generation_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (story_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
			page_number INTEGER NOT NULL,
			text TEXT NOT NULL,
			entity_ids TEXT NOT NULL DEFAULT '[]',
			image_prompt TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (story_id, page_number)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
