package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the API layer.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInUse is returned when deleting a record that other records
	// still reference (e.g. a competition with uploaded artifacts).
	ErrInUse = errors.New("record is referenced by other records")
	// ErrDuplicate is returned on unique constraint conflicts
	// (e.g. registering an email twice).
	ErrDuplicate = errors.New("record already exists")
)

// maxPageSize is the hard cap on a single listing page. Callers needing
// more than one page loop, accumulating an offset until a returned page
// is shorter than the requested limit.
const maxPageSize = 100

// Verify at compile time that Store implements all interfaces.
var (
	_ CompetitionStore = (*Store)(nil)
	_ GradeStore       = (*Store)(nil)
	_ UserStore        = (*Store)(nil)
	_ ArtifactStore    = (*Store)(nil)
	_ ArtifactClaimer  = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	// Ensure the schema_version table exists.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: initialize to version 0.
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// migrations is an ordered list of migration functions.
	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: initial schema
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS competitions (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		year       INTEGER NOT NULL,
		location   TEXT,
		active     INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_competitions_year ON competitions(year DESC, name);

	CREATE TABLE IF NOT EXISTS grades (
		id                   TEXT PRIMARY KEY,
		competition_id       TEXT NOT NULL REFERENCES competitions(id),
		category             TEXT NOT NULL,
		segment              TEXT NOT NULL,
		grade_type           TEXT NOT NULL,
		max_duration_seconds INTEGER NOT NULL DEFAULT 0,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_grades_competition ON grades(competition_id, category, segment);

	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id               TEXT PRIMARY KEY,
		storage_id       TEXT NOT NULL UNIQUE,
		display_name     TEXT NOT NULL,
		original_name    TEXT NOT NULL,
		competition_id   TEXT NOT NULL,
		competition_name TEXT NOT NULL,
		competition_year INTEGER NOT NULL,
		grade_id         TEXT NOT NULL,
		grade_category   TEXT NOT NULL,
		grade_segment    TEXT NOT NULL,
		grade_type       TEXT NOT NULL,
		owner_id         TEXT NOT NULL,
		owner_name       TEXT NOT NULL,
		size_bytes       INTEGER NOT NULL,
		duration_seconds INTEGER,
		checksum         TEXT NOT NULL,
		status           TEXT NOT NULL,
		error_info       TEXT,
		uploaded_at      TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_competition ON artifacts(competition_id, uploaded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_artifacts_status ON artifacts(status, uploaded_at ASC);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_grade_owner ON artifacts(grade_id, owner_id);
	`
	_, err := s.db.Exec(schema)
	return err
}
