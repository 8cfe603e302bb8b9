package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-finder/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS profile_cache`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedProfile_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM profile_cache WHERE cache_key = \$1`).
		WithArgs("lookup:acme.com|cfo").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"url":"x"}`)))

	data, err := s.GetCachedProfile(context.Background(), "lookup:acme.com|cfo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"x"}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedProfile_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM profile_cache`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	data, err := s.GetCachedProfile(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO profile_cache`).
		WithArgs("k", []byte(`{}`), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetCachedProfile(context.Background(), "k", []byte(`{}`), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredProfiles(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM profile_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteExpiredProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	rec := model.SessionRecord{ID: "s1", Status: model.SessionStopped, Total: 4, Processed: 2, CreatedAt: now, FinishedAt: now}

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("s1", "stopped", 4, 2, []byte("null"), "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveSession(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	results, err := json.Marshal([]model.ContactRow{{Domain: "acme.com", Name: "Jane"}})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, status, total, processed, results, error, created_at, finished_at FROM sessions WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "total", "processed", "results", "error", "created_at", "finished_at"}).
			AddRow("s1", "completed", 1, 1, results, "", now, now))

	rec, err := s.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, rec.Status)
	require.Len(t, rec.Results, 1)
	assert.Equal(t, "Jane", rec.Results[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSession_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM sessions WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM sessions WHERE status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("errored", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "total", "processed", "results", "error", "created_at", "finished_at"}).
			AddRow("s9", "errored", 3, 1, []byte(`[]`), "sink closed", now, now))

	recs, err := s.ListSessions(context.Background(), SessionFilter{Status: model.SessionErrored, Limit: 10})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "sink closed", recs[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions_CreatedAfter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM sessions WHERE status = \$1 AND created_at > \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("completed", since, defaultListLimit, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "total", "processed", "results", "error", "created_at", "finished_at"}))

	recs, err := s.ListSessions(context.Background(), SessionFilter{Status: model.SessionCompleted, CreatedAfter: since})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM sessions ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(defaultListLimit, 0).
		WillReturnError(errors.New("connection refused"))

	_, err := s.ListSessions(context.Background(), SessionFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list sessions")
	assert.NoError(t, mock.ExpectationsWereMet())
}
