package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/session"
	"github.com/sells-group/contact-finder/internal/store"
)

type runFunc func(ctx context.Context, units []model.WorkUnit, ctl session.Control) error

func (f runFunc) Run(ctx context.Context, units []model.WorkUnit, ctl session.Control) error {
	return f(ctx, units, ctl)
}

func contactFor(u model.WorkUnit) model.Contact {
	return model.Contact{
		Domain:      u.Domain,
		MatchedRole: u.Role,
		Name:        model.Found("Jane Doe"),
		Title:       model.Found(u.Role),
		Email:       model.Found("jane@" + u.Domain),
		LinkedInURL: model.Found("https://www.linkedin.com/in/janedoe"),
	}
}

// fakeRunner resolves every unit to the same person. When gate is set each
// unit waits for a value from it.
func fakeRunner(gate <-chan struct{}) session.Runner {
	return runFunc(func(_ context.Context, units []model.WorkUnit, ctl session.Control) error {
		var rows []model.ContactRow
		for i, u := range units {
			if gate != nil {
				<-gate
			}
			if ctl.StopRequested() {
				return ctl.Emit(model.StoppedEvent(rows))
			}
			if err := ctl.Emit(model.ProgressEvent(i+1, len(units), u.Domain, u.Role)); err != nil {
				return err
			}
			c := contactFor(u)
			rows = append(rows, c.Row())
			if err := ctl.Emit(model.ResultEvent(c)); err != nil {
				return err
			}
		}
		return ctl.Emit(model.CompleteEvent(rows))
	})
}

func newTestManager(t *testing.T, r session.Runner, st store.Store) *session.Manager {
	t.Helper()
	mgr := session.NewManager(session.NewRegistry(), r, session.Options{OnFinish: saveSession(st)})
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })
	return mgr
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), store.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}
