// Package session tracks running search batches and relays their events to
// a single streaming consumer.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted session ids.
	ErrSessionNotFound = eris.New("session: not found")
	// ErrSessionClosed is returned when appending after the terminal event.
	ErrSessionClosed = eris.New("session: closed")
	// ErrAlreadyAttached is returned when a second consumer tries to stream.
	ErrAlreadyAttached = eris.New("session: consumer already attached")
)

// Session is one batch of work units and its append-only event log.
type Session struct {
	ID        string
	Units     []model.WorkUnit
	CreatedAt time.Time

	stop atomic.Bool

	mu           sync.Mutex
	status       model.SessionStatus
	events       []model.Event
	notify       chan struct{}
	attached     bool
	everAttached bool
	delivered    bool
	finishedAt   time.Time
	lastActive   time.Time
}

func newSession(id string, units []model.WorkUnit, now time.Time) *Session {
	return &Session{
		ID:         id,
		Units:      units,
		CreatedAt:  now,
		status:     model.SessionRunning,
		notify:     make(chan struct{}),
		lastActive: now,
	}
}

// StopRequested reports whether a stop was requested. The runner polls it
// between units.
func (s *Session) StopRequested() bool { return s.stop.Load() }

func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Events returns a copy of the event log.
func (s *Session) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.events...)
}

// requestStop sets the stop flag. It reports false if the session already
// finished.
func (s *Session) requestStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.stop.Store(true)
	if s.status == model.SessionRunning {
		s.status = model.SessionStopping
	}
	return true
}

// append adds ev to the log and wakes the consumer. It reports whether ev
// was the terminal event.
func (s *Session) append(ev model.Event, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false, ErrSessionClosed
	}
	s.events = append(s.events, ev)
	terminal := ev.Terminal()
	if terminal {
		s.status = model.StatusForTerminal(ev)
		s.finishedAt = now
	}
	s.lastActive = now
	close(s.notify)
	s.notify = make(chan struct{})
	return terminal, nil
}

// Record summarizes the session for history.
func (s *Session) Record() model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := model.SessionRecord{
		ID:         s.ID,
		Status:     s.status,
		Total:      len(s.Units),
		CreatedAt:  s.CreatedAt,
		FinishedAt: s.finishedAt,
	}
	for _, ev := range s.events {
		switch {
		case ev.Type == model.EventResult && ev.Data != nil:
			rec.Results = append(rec.Results, *ev.Data)
		case ev.Type == model.EventError && ev.Fatal:
			rec.Error = ev.Message
		}
	}
	rec.Processed = len(rec.Results)
	return rec
}
