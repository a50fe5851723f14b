// Package persistence provides SQL-backed storage for step-based sessions and
// adaptive interview snapshots. SQLite (modernc) and Postgres (pgx) share one schema.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "modernc.org/sqlite"             // SQLite driver

	"discovery/pkg/logx"
)

// Dialect names the SQL flavor a Store speaks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// timeLayout is fixed-width UTC so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// timeNow is the clock used for bookkeeping columns.
//
//nolint:gochecknoglobals // overridable in tests
var timeNow = time.Now

// Store owns the database handle. All access goes through Sessions and Workflows.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *logx.Logger
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates it.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer; keeps :memory: on one connection)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return open(ctx, db, DialectSQLite, path)
}

// OpenPostgres connects to Postgres through pgx and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return open(ctx, db, DialectPostgres, "postgres")
}

func open(ctx context.Context, db *sql.DB, dialect Dialect, name string) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{db: db, dialect: dialect, logger: logx.NewLogger("persistence")}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, logx.Wrap(err, "failed to initialize schema")
	}
	s.logger.Info("📦 Database initialized: %s (%s)", name, dialect)
	return s, nil
}

// Dialect reports the SQL flavor.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Sessions returns the session.Storage view of the store.
func (s *Store) Sessions() *SessionStore { return &SessionStore{store: s} }

// Workflows returns the workflow.SnapshotStore view of the store.
func (s *Store) Workflows() *WorkflowStore { return &WorkflowStore{store: s} }

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err //nolint:wrapcheck // callers wrap with operation context
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil //nolint:nilnil // NULL column
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
