// Package monitoring watches finished search sessions and raises webhook
// alerts when error or hit rates cross configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/store"
)

// collectLimit caps how many sessions one snapshot scans.
const collectLimit = 10000

// Snapshot holds a point-in-time view of search health.
type Snapshot struct {
	// Session metrics (within lookback window).
	SessionsTotal     int     `json:"sessions_total"`
	SessionsCompleted int     `json:"sessions_completed"`
	SessionsStopped   int     `json:"sessions_stopped"`
	SessionsErrored   int     `json:"sessions_errored"`
	SessionErrorRate  float64 `json:"session_error_rate"`

	// Contact metrics.
	UnitsProcessed int     `json:"units_processed"`
	ContactsFound  int     `json:"contacts_found"`
	EmailsFound    int     `json:"emails_found"`
	EmailErrors    int     `json:"email_errors"`
	EmailHitRate   float64 `json:"email_hit_rate"`

	// Live sessions at collection time.
	LiveSessions int `json:"live_sessions"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// SessionLister is the slice of the store the collector reads.
type SessionLister interface {
	ListSessions(ctx context.Context, filter store.SessionFilter) ([]model.SessionRecord, error)
}

// LiveLister lists the sessions currently held in memory.
type LiveLister interface {
	Live() []model.SessionRecord
}

// Collector gathers metrics from session history.
type Collector struct {
	sessions SessionLister
	live     LiveLister
}

// NewCollector creates a new metrics collector. live may be nil.
func NewCollector(sessions SessionLister, live LiveLister) *Collector {
	return &Collector{sessions: sessions, live: live}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := time.Now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	recs, err := c.sessions.ListSessions(ctx, store.SessionFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list sessions")
	}

	snap.SessionsTotal = len(recs)
	for _, rec := range recs {
		switch rec.Status {
		case model.SessionCompleted:
			snap.SessionsCompleted++
		case model.SessionStopped:
			snap.SessionsStopped++
		case model.SessionErrored:
			snap.SessionsErrored++
		}
		snap.UnitsProcessed += rec.Processed

		for _, row := range rec.Results {
			if !resolved(row.Name) {
				continue
			}
			snap.ContactsFound++
			switch {
			case row.Email == model.SentinelError:
				snap.EmailErrors++
			case resolved(row.Email):
				snap.EmailsFound++
			}
		}
	}

	if snap.SessionsTotal > 0 {
		snap.SessionErrorRate = float64(snap.SessionsErrored) / float64(snap.SessionsTotal)
	}
	if snap.ContactsFound > 0 {
		snap.EmailHitRate = float64(snap.EmailsFound) / float64(snap.ContactsFound)
	}
	if c.live != nil {
		snap.LiveSessions = len(c.live.Live())
	}
	return snap, nil
}

func resolved(v string) bool {
	return v != "" && v != model.SentinelNotFound && v != model.SentinelError
}
