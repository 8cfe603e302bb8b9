// Package stream relays session events to HTTP clients as Server-Sent
// Events.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/metrics"
	"github.com/sells-group/contact-finder/internal/model"
)

// Source yields events until the terminal one, then io.EOF. Ack is called
// once the terminal event has been written and flushed.
// *session.Stream satisfies it.
type Source interface {
	SessionID() string
	Next(ctx context.Context) (model.Event, error)
	Ack()
	Close()
}

// DefaultKeepAlive is the idle interval between keep-alive comments.
const DefaultKeepAlive = 15 * time.Second

// Publisher writes a Source to an HTTP response as an event stream.
type Publisher struct {
	keepAlive time.Duration
	metrics   *metrics.Metrics
}

// NewPublisher creates a Publisher. A non-positive keepAlive uses
// DefaultKeepAlive. m may be nil.
func NewPublisher(keepAlive time.Duration, m *metrics.Metrics) *Publisher {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &Publisher{keepAlive: keepAlive, metrics: m}
}

// Serve streams src to w until the terminal event has been written or the
// client goes away. src is closed on return.
func (p *Publisher) Serve(w http.ResponseWriter, r *http.Request, src Source) error {
	defer src.Close()
	ctx := r.Context()
	log := zap.L().With(zap.String("session_id", src.SessionID()))

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return eris.Wrap(err, "stream: flush headers")
	}

	for {
		ev, err := p.next(ctx, src)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, errIdle):
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return eris.Wrap(err, "stream: write keep-alive")
			}
			if err := rc.Flush(); err != nil {
				return eris.Wrap(err, "stream: flush keep-alive")
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				log.Debug("stream: client disconnected")
			}
			return eris.Wrap(err, "stream: next event")
		}

		if err := WriteEvent(w, ev); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil {
			return eris.Wrap(err, "stream: flush event")
		}
		if ev.Terminal() {
			src.Ack()
		}
		p.metrics.EventPublished(ctx, string(ev.Type))
	}
}

var errIdle = errors.New("stream: idle")

// next waits up to the keep-alive interval for an event.
func (p *Publisher) next(ctx context.Context, src Source) (model.Event, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.keepAlive)
	defer cancel()
	ev, err := src.Next(waitCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return ev, errIdle
	}
	return ev, err
}

// WriteEvent writes one "data: <json>" frame.
func WriteEvent(w io.Writer, ev model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrapf(err, "stream: marshal %s event", ev.Type)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return eris.Wrap(err, "stream: write event")
	}
	return nil
}
