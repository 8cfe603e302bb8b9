package session

import (
	"context"
	"io"
	"sync"

	"github.com/sells-group/contact-finder/internal/model"
)

// Stream yields a session's events in append order to its one consumer.
type Stream struct {
	m    *Manager
	s    *Session
	pos  int
	done bool
	once sync.Once
}

// SessionID returns the id of the streamed session.
func (st *Stream) SessionID() string { return st.s.ID }

// Next blocks until the next event is available. It returns io.EOF after
// the terminal event has been returned, and ctx's error if ctx ends first.
func (st *Stream) Next(ctx context.Context) (model.Event, error) {
	for {
		st.s.mu.Lock()
		if st.done {
			st.s.mu.Unlock()
			return model.Event{}, io.EOF
		}
		if st.pos < len(st.s.events) {
			ev := st.s.events[st.pos]
			st.pos++
			if ev.Terminal() {
				st.done = true
			}
			st.s.mu.Unlock()
			return ev, nil
		}
		wait := st.s.notify
		st.s.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.Event{}, ctx.Err()
		case <-wait:
		}
	}
}

// Ack records that the terminal event returned by Next reached the consumer.
// It has no effect before Next has returned the terminal event.
func (st *Stream) Ack() {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if st.done {
		st.s.delivered = true
	}
}

// Close detaches the consumer. A session whose terminal event was acked is
// evicted; otherwise a new consumer may attach and replay from the start.
func (st *Stream) Close() {
	st.once.Do(func() {
		st.s.mu.Lock()
		st.s.attached = false
		st.s.lastActive = st.m.now()
		delivered := st.s.delivered
		st.s.mu.Unlock()
		if delivered {
			st.m.registry.Delete(st.s.ID)
		}
	})
}
