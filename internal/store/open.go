package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open connects to the configured backend and applies migrations. It returns
// nil, nil for DriverNone.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case DriverNone:
		return nil, nil
	case DriverSQLite, "":
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
