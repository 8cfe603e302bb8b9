package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 5
	pgxCfg.MinConns = 1
	if poolCfg.MaxConns > 0 {
		pgxCfg.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		pgxCfg.MinConns = poolCfg.MinConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS profile_cache (
	cache_key  TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profile_cache_expires_at ON profile_cache(expires_at);

CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	total       INTEGER NOT NULL,
	processed   INTEGER NOT NULL,
	results     JSONB NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetCachedProfile(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM profile_cache WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached profile")
	}
	return data, nil
}

func (s *PostgresStore) SetCachedProfile(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profile_cache (cache_key, data, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET data = $2, cached_at = $3, expires_at = $4`,
		key, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached profile")
}

func (s *PostgresStore) DeleteExpiredProfiles(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profile_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired profiles")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, rec model.SessionRecord) error {
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal results")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, status, total, processed, results, error, created_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET status = $2, processed = $4, results = $5, error = $6, finished_at = $8`,
		rec.ID, string(rec.Status), rec.Total, rec.Processed, results, rec.Error, rec.CreatedAt, rec.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: save session %s", rec.ID)
}

const sessionColumns = `id, status, total, processed, results, error, created_at, finished_at`

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	rec, err := scanPGSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: session %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get session")
	}
	return rec, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	var where []string
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter.UTC())
		where = append(where, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, listLimit(filter), filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []model.SessionRecord
	for rows.Next() {
		rec, err := scanPGSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func scanPGSession(row pgx.Row) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	var status string
	var results []byte
	if err := row.Scan(&rec.ID, &status, &rec.Total, &rec.Processed, &results, &rec.Error, &rec.CreatedAt, &rec.FinishedAt); err != nil {
		return nil, err
	}
	rec.Status = model.SessionStatus(status)
	if err := json.Unmarshal(results, &rec.Results); err != nil {
		return nil, eris.Wrap(err, "unmarshal results")
	}
	return &rec, nil
}
