package model

import "time"

// SessionStatus represents the lifecycle state of a search session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionStopping  SessionStatus = "stopping"
	SessionCompleted SessionStatus = "completed"
	SessionStopped   SessionStatus = "stopped"
	SessionErrored   SessionStatus = "errored"
)

// Terminal reports whether no further events can follow.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionStopped || s == SessionErrored
}

// StatusForTerminal maps a terminal event to the status it implies.
func StatusForTerminal(e Event) SessionStatus {
	switch e.Type {
	case EventComplete:
		return SessionCompleted
	case EventStopped:
		return SessionStopped
	default:
		return SessionErrored
	}
}

// WorkUnit is one (domain, role) pair to resolve. Index is 1-based.
type WorkUnit struct {
	Domain string `json:"domain" yaml:"domain"`
	Role   string `json:"role" yaml:"role"`
	Index  int    `json:"index" yaml:"index"`
}

// SessionRecord is the persisted summary of a finished session.
type SessionRecord struct {
	ID         string        `json:"id"`
	Status     SessionStatus `json:"status"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Results    []ContactRow  `json:"results"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
