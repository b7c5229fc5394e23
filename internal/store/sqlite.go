package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reso-directory/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS refresh_attempts (
	id          TEXT PRIMARY KEY,
	snapshot_id TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	ok          BOOLEAN NOT NULL,
	org_count   INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_refresh_attempts_started_at ON refresh_attempts(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context, a model.RefreshAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_attempts (id, snapshot_id, started_at, finished_at, ok, org_count, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SnapshotID, a.StartedAt.UTC(), a.FinishedAt.UTC(), a.OK, a.Count, a.Error,
	)
	return eris.Wrapf(err, "sqlite: insert refresh attempt %s", a.ID)
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.RefreshAttempt, error) {
	query := `SELECT id, snapshot_id, started_at, finished_at, ok, org_count, error FROM refresh_attempts WHERE 1=1`
	var args []any

	if filter.FailedOnly {
		query += ` AND ok = 0`
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.StartedAfter.UTC())
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list refresh attempts")
	}
	defer rows.Close() //nolint:errcheck

	attempts := []model.RefreshAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan refresh attempt")
		}
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "sqlite: list refresh attempts iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAttempt(row scannable) (model.RefreshAttempt, error) {
	var a model.RefreshAttempt
	err := row.Scan(&a.ID, &a.SnapshotID, &a.StartedAt, &a.FinishedAt, &a.OK, &a.Count, &a.Error)
	return a, err
}
