package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-finder/internal/model"
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
CREATE TABLE IF NOT EXISTS profile_cache (
	cache_key  TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	total       INTEGER NOT NULL,
	processed   INTEGER NOT NULL,
	results     TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profile_cache_expires_at ON profile_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCachedProfile(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM profile_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached profile")
	}
	return []byte(data), nil
}

func (s *SQLiteStore) SetCachedProfile(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_cache (cache_key, data, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached profile")
}

func (s *SQLiteStore) DeleteExpiredProfiles(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM profile_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired profiles")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) SaveSession(ctx context.Context, rec model.SessionRecord) error {
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal results")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, status, total, processed, results, error, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET status = excluded.status, processed = excluded.processed,
		   results = excluded.results, error = excluded.error, finished_at = excluded.finished_at`,
		rec.ID, string(rec.Status), rec.Total, rec.Processed, string(results), rec.Error,
		rec.CreatedAt.UTC(), rec.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save session %s", rec.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, total, processed, results, error, created_at, finished_at FROM sessions WHERE id = ?`,
		id,
	)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: session %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get session")
	}
	return rec, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRecord, error) {
	query := `SELECT id, status, total, processed, results, error, created_at, finished_at FROM sessions WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, listLimit(filter), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	var status, results string
	if err := row.Scan(&rec.ID, &status, &rec.Total, &rec.Processed, &results, &rec.Error, &rec.CreatedAt, &rec.FinishedAt); err != nil {
		return nil, err
	}
	rec.Status = model.SessionStatus(status)
	if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
		return nil, eris.Wrap(err, "unmarshal results")
	}
	return &rec, nil
}
