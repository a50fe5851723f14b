package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 2

// migrate ensures the database schema is at the current version.
func (s *Store) migrate(ctx context.Context) error {
	if err := s.exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}
	if currentVersion > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, CurrentSchemaVersion)
	}

	for version := currentVersion + 1; version <= CurrentSchemaVersion; version++ {
		if err := s.runMigration(ctx, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := s.exec(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			version, formatTime(timeNow())); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
		s.logger.Debug("applied schema migration %d", version)
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 for a fresh database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func (s *Store) runMigration(ctx context.Context, version int) error {
	switch version {
	case 1:
		return s.migrateToVersion1(ctx)
	case 2:
		return s.migrateToVersion2(ctx)
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

// migrateToVersion1 creates the session and adaptive interview tables.
func (s *Store) migrateToVersion1(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS interview_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			interview_type TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step INTEGER NOT NULL DEFAULT 0,
			responses TEXT NOT NULL,
			context_data TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS adaptive_interviews (
			id TEXT PRIMARY KEY,
			variant TEXT NOT NULL,
			domain TEXT NOT NULL,
			objective TEXT NOT NULL,
			constraints TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL,
			exchanges TEXT NOT NULL,
			context_document TEXT,
			recommendations TEXT,
			state TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		)`,
	}
	for _, table := range tables {
		if err := s.exec(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// migrateToVersion2 adds indices for session listing and phase lookups.
func (s *Store) migrateToVersion2(ctx context.Context) error {
	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_sessions_created ON interview_sessions(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_user ON interview_sessions(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_status ON interview_sessions(status)",
		"CREATE INDEX IF NOT EXISTS idx_adaptive_phase ON adaptive_interviews(phase)",
	}
	for _, index := range indices {
		if err := s.exec(ctx, index); err != nil {
			return fmt.Errorf("failed to execute migration: %s: %w", index, err)
		}
	}
	return nil
}
