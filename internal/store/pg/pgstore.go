// Package pg persists directory profiles, invitations, and audit rows in
// PostgreSQL with elevated service credentials.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store wraps the directory database.
type Store struct {
	db *sql.DB

	// activeFlag caches the startup schema probe: whether profiles has
	// an is_active column. See DetectActiveFlag.
	activeFlag bool
}

// Open connects to PostgreSQL with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle (tests).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// DetectActiveFlag probes the catalog once for the profiles.is_active
// column and caches the result. Run at startup; downstream code branches
// on SupportsActiveFlag instead of string-matching store errors.
func (s *Store) DetectActiveFlag(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		select count(*)
		from information_schema.columns
		where table_schema = 'public'
		  and table_name = 'profiles'
		  and column_name = 'is_active'
	`).Scan(&n)
	if err != nil {
		return false, err
	}
	s.activeFlag = n > 0
	return s.activeFlag, nil
}

// SupportsActiveFlag reports the cached schema probe result.
func (s *Store) SupportsActiveFlag() bool { return s.activeFlag }

// SetActiveFlagForTests overrides the probed capability. Test use only.
func (s *Store) SetActiveFlagForTests(v bool) { s.activeFlag = v }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// nullable maps the empty string to SQL NULL for optional text columns.
func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
