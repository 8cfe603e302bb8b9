package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/metrics"
	"github.com/sells-group/contact-finder/internal/model"
)

// Control is a runner's view of its session.
type Control interface {
	ID() string
	StopRequested() bool
	Emit(ev model.Event) error
}

// Runner executes a session's units and emits its events through ctl,
// ending with a terminal event. A returned error with no terminal event
// emitted ends the session as errored.
type Runner interface {
	Run(ctx context.Context, units []model.WorkUnit, ctl Control) error
}

// FinishFunc is called once per session after its terminal event.
type FinishFunc func(ctx context.Context, rec model.SessionRecord)

// Options configures a Manager.
type Options struct {
	// IdleTTL is how long a finished session nobody is streaming stays
	// available for a late consumer.
	IdleTTL time.Duration

	// AttachTimeout stops running sessions nobody attached to in time.
	// Zero disables it.
	AttachTimeout time.Duration

	OnFinish FinishFunc
	Metrics  *metrics.Metrics
}

const defaultIdleTTL = 10 * time.Minute

// Manager creates sessions, runs them and hands their events to consumers.
type Manager struct {
	registry *Registry
	runner   Runner
	opts     Options
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager that stores sessions in registry.
func NewManager(registry *Registry, runner Runner, opts Options) *Manager {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry: registry,
		runner:   runner,
		opts:     opts,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Create registers a session for units, emits its init event and starts the
// runner in the background.
func (m *Manager) Create(units []model.WorkUnit) (string, error) {
	if len(units) == 0 {
		return "", eris.New("session: no work units")
	}
	id := uuid.NewString()
	s := newSession(id, units, m.now())
	if _, err := s.append(model.InitEvent(id, len(units)), m.now()); err != nil {
		return "", eris.Wrap(err, "session: append init")
	}
	m.registry.Insert(s)
	m.opts.Metrics.SessionStarted(m.ctx)

	zap.L().Info("session: created", zap.String("session_id", id), zap.Int("units", len(units)))

	m.wg.Add(1)
	go m.run(s)
	return id, nil
}

func (m *Manager) run(s *Session) {
	defer m.wg.Done()
	log := zap.L().With(zap.String("session_id", s.ID))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = eris.Errorf("session: runner panic: %v", r)
			}
		}()
		return m.runner.Run(m.ctx, s.Units, &control{m: m, s: s})
	}()

	if s.Status().Terminal() {
		return
	}
	msg := "session ended without a terminal event"
	if err != nil {
		log.Error("session: runner failed", zap.Error(err))
		msg = err.Error()
	}
	if _, aerr := m.append(s, model.FatalErrorEvent(msg)); aerr != nil {
		log.Warn("session: append fatal error", zap.Error(aerr))
	}
}

// Append adds ev to session id's log.
func (m *Manager) Append(id string, ev model.Event) error {
	s, ok := m.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	_, err := m.append(s, ev)
	return err
}

func (m *Manager) append(s *Session, ev model.Event) (bool, error) {
	terminal, err := s.append(ev, m.now())
	if err != nil {
		return false, eris.Wrapf(err, "session: append %s to %s", ev.Type, s.ID)
	}
	if terminal {
		m.finish(s)
	}
	return terminal, nil
}

func (m *Manager) finish(s *Session) {
	rec := s.Record()
	m.opts.Metrics.SessionFinished(m.ctx, string(rec.Status))
	zap.L().Info("session: finished",
		zap.String("session_id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.Int("processed", rec.Processed),
		zap.Int("total", rec.Total),
	)
	if m.opts.OnFinish == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), 10*time.Second)
	defer cancel()
	m.opts.OnFinish(ctx, rec)
}

// RequestStop asks session id to stop before its next unit. Repeated calls
// are harmless. Unknown and finished sessions return ErrSessionNotFound.
func (m *Manager) RequestStop(id string) error {
	s, ok := m.registry.Get(id)
	if !ok || !s.requestStop() {
		return ErrSessionNotFound
	}
	zap.L().Info("session: stop requested", zap.String("session_id", id))
	return nil
}

// Stream attaches the single consumer of session id. The stream replays the
// log from the start.
func (m *Manager) Stream(id string) (*Stream, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return nil, ErrAlreadyAttached
	}
	s.attached = true
	s.everAttached = true
	return &Stream{m: m, s: s}, nil
}

// Record returns the current summary of a live session.
func (m *Manager) Record(id string) (model.SessionRecord, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return model.SessionRecord{}, ErrSessionNotFound
	}
	return s.Record(), nil
}

// Live returns summaries of every session still held in memory.
func (m *Manager) Live() []model.SessionRecord {
	sessions := m.registry.Snapshot()
	out := make([]model.SessionRecord, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Record())
	}
	return out
}

// Sweep evicts finished sessions idle for IdleTTL and stops running sessions
// nobody attached to within AttachTimeout.
func (m *Manager) Sweep() (evicted, stopped int) {
	now := m.now()
	for _, s := range m.registry.Snapshot() {
		s.mu.Lock()
		status, attached, ever := s.status, s.attached, s.everAttached
		idle := now.Sub(s.lastActive)
		age := now.Sub(s.CreatedAt)
		s.mu.Unlock()

		switch {
		case status.Terminal() && !attached && idle >= m.opts.IdleTTL:
			m.registry.Delete(s.ID)
			evicted++
		case status == model.SessionRunning && !ever && m.opts.AttachTimeout > 0 && age >= m.opts.AttachTimeout:
			if s.requestStop() {
				zap.L().Warn("session: no consumer attached, stopping", zap.String("session_id", s.ID))
				stopped++
			}
		}
	}
	return evicted, stopped
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	log := zap.L().With(zap.String("component", "session.janitor"))
	log.Info("starting session janitor", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("session janitor stopped")
			return
		case <-ticker.C:
			if evicted, stopped := m.Sweep(); evicted > 0 || stopped > 0 {
				log.Info("session: sweep",
					zap.Int("evicted", evicted),
					zap.Int("stopped", stopped),
					zap.Int("live", m.registry.Len()),
				)
			}
		}
	}
}

// Shutdown asks every session to stop and waits for their runners. If ctx
// ends first, in-flight provider calls are cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, s := range m.registry.Snapshot() {
		s.requestStop()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return eris.Wrap(ctx.Err(), "session: shutdown")
	}
}

type control struct {
	m *Manager
	s *Session
}

func (c *control) ID() string          { return c.s.ID }
func (c *control) StopRequested() bool { return c.s.StopRequested() }

func (c *control) Emit(ev model.Event) error {
	_, err := c.m.append(c.s, ev)
	return err
}
