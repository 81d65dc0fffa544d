// Package state persists metadata fetched from sources so that the catalog
// can be restored without reconnecting to every database.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// SourceIDBase is the first external id handed out to sources. Lower ids
// are left to scripts.
const SourceIDBase uint32 = 1 << 20

var (
	// ErrNotOpened is returned when the store is used before Open.
	ErrNotOpened = errors.New("database not opened")
	// ErrSourceNotFound is returned for unknown source names.
	ErrSourceNotFound = errors.New("source not found")
)

// Source is a registered metadata source.
type Source struct {
	Name       string
	Type       string
	Rank       uint32
	ExternalID uint32
	UpdatedAt  time.Time
}

// Snapshot is one persisted fetch of a source.
type Snapshot struct {
	ID         string
	Source     string
	CreatedAt  time.Time
	TableCount int
}

// SQLiteStore stores sources and their snapshots in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a store. A nil logger means discard.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path and runs pending migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	s.db = db
	s.path = path
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.logger.Debug("state store opened", "path", path)
	return nil
}

// Path returns the path passed to Open.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// --- Source operations ---

// UpsertSource registers a source or updates its type and rank. New sources
// get the next free external id.
func (s *SQLiteStore) UpsertSource(ctx context.Context, name, typ string, rank uint32) (*Source, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next uint32
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(external_id) + 1, ?) FROM sources`, SourceIDBase,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("allocate external id: %w", err)
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sources (name, type, rank, external_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET type = excluded.type, rank = excluded.rank, updated_at = excluded.updated_at
	`, name, typ, rank, next, now); err != nil {
		return nil, fmt.Errorf("upsert source %s: %w", name, err)
	}
	src, err := scanSource(tx.QueryRowContext(ctx, sourceQuery+` WHERE name = ?`, name))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return src, nil
}

const sourceQuery = `SELECT name, type, rank, external_id, updated_at FROM sources`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	src := &Source{}
	err := row.Scan(&src.Name, &src.Type, &src.Rank, &src.ExternalID, &src.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	return src, nil
}

// GetSource returns the source with the given name.
func (s *SQLiteStore) GetSource(ctx context.Context, name string) (*Source, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	src, err := scanSource(s.db.QueryRowContext(ctx, sourceQuery+` WHERE name = ?`, name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return src, nil
}

// ListSources returns all sources ordered by rank and name.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]Source, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	rows, err := s.db.QueryContext(ctx, sourceQuery+` ORDER BY rank, name`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// DeleteSource removes a source and its snapshots.
func (s *SQLiteStore) DeleteSource(ctx context.Context, name string) error {
	if s.db == nil {
		return ErrNotOpened
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete source %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", name, ErrSourceNotFound)
	}
	return nil
}
