package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for persisted sessions: the files
// each session collected, their attributions, and the type descriptors the
// session disclosed.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
  id              INTEGER PRIMARY KEY,
  uuid            TEXT NOT NULL UNIQUE,
  project_root    TEXT NOT NULL,
  mode            TEXT NOT NULL,
  started_at      TIMESTAMP,
  ended_at        TIMESTAMP
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  session_id      INTEGER NOT NULL REFERENCES sessions(id),
  path            TEXT NOT NULL,
  module          TEXT,
  hash            TEXT,
  collected_at    TIMESTAMP,
  UNIQUE (session_id, path)
);

CREATE TABLE IF NOT EXISTS attributions (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  ordinal         INTEGER NOT NULL,
  start_offset    INTEGER NOT NULL,
  end_offset      INTEGER NOT NULL,
  node_kind       TEXT NOT NULL,
  type_id         INTEGER,
  has_signature   BOOLEAN DEFAULT FALSE,
  return_type_id  INTEGER,
  type_arguments  TEXT,
  fallback        BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS call_parameters (
  id              INTEGER PRIMARY KEY,
  attribution_id  INTEGER NOT NULL REFERENCES attributions(id),
  ordinal         INTEGER NOT NULL,
  name            TEXT,
  kind            TEXT NOT NULL,
  type_id         INTEGER,
  has_default     BOOLEAN DEFAULT FALSE,
  default_type_id INTEGER
);

CREATE TABLE IF NOT EXISTS types (
  session_id      INTEGER NOT NULL REFERENCES sessions(id),
  type_id         INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  display         TEXT,
  descriptor      TEXT NOT NULL,
  hash            TEXT NOT NULL,
  PRIMARY KEY (session_id, type_id)
);

CREATE INDEX IF NOT EXISTS idx_files_session ON files(session_id);
CREATE INDEX IF NOT EXISTS idx_attributions_file ON attributions(file_id);
CREATE INDEX IF NOT EXISTS idx_attributions_type ON attributions(type_id);
CREATE INDEX IF NOT EXISTS idx_call_parameters_attribution ON call_parameters(attribution_id);
CREATE INDEX IF NOT EXISTS idx_types_kind ON types(session_id, kind);
`
