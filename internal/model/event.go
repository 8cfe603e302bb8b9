package model

import "encoding/json"

// EventType discriminates session events on the wire.
type EventType string

const (
	EventInit     EventType = "init"
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
	EventStopped  EventType = "stopped"
)

// Event is one entry of a session's event log. Only the fields relevant to
// Type are populated.
type Event struct {
	Type      EventType    `json:"type"`
	SessionID string       `json:"session_id,omitempty"`
	Total     int          `json:"total,omitempty"`
	Current   int          `json:"current,omitempty"`
	Domain    string       `json:"domain,omitempty"`
	Role      string       `json:"role,omitempty"`
	Data      *ContactRow  `json:"data,omitempty"`
	Message   string       `json:"message,omitempty"`
	Fatal     bool         `json:"fatal,omitempty"`
	Processed int          `json:"processed,omitempty"`
	Results   []ContactRow `json:"results,omitempty"`
}

// MarshalJSON writes only the fields that belong to the event's type, so
// counters stay present when zero and results is never null.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventInit:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			SessionID string    `json:"session_id"`
			Total     int       `json:"total"`
		}{e.Type, e.SessionID, e.Total})
	case EventProgress:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Current int       `json:"current"`
			Total   int       `json:"total"`
			Domain  string    `json:"domain"`
			Role    string    `json:"role"`
		}{e.Type, e.Current, e.Total, e.Domain, e.Role})
	case EventResult:
		return json.Marshal(struct {
			Type EventType   `json:"type"`
			Data *ContactRow `json:"data"`
		}{e.Type, e.Data})
	case EventError:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
			Fatal   bool      `json:"fatal"`
		}{e.Type, e.Message, e.Fatal})
	case EventComplete, EventStopped:
		results := e.Results
		if results == nil {
			results = []ContactRow{}
		}
		return json.Marshal(struct {
			Type      EventType    `json:"type"`
			Processed int          `json:"processed"`
			Results   []ContactRow `json:"results"`
		}{e.Type, e.Processed, results})
	}
	type plain Event
	return json.Marshal(plain(e))
}

// Terminal reports whether the event closes its session's stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventComplete, EventStopped:
		return true
	case EventError:
		return e.Fatal
	default:
		return false
	}
}

// InitEvent announces a new session and its unit count.
func InitEvent(sessionID string, total int) Event {
	return Event{Type: EventInit, SessionID: sessionID, Total: total}
}

// ProgressEvent precedes the processing of unit current of total.
func ProgressEvent(current, total int, domain, role string) Event {
	return Event{Type: EventProgress, Current: current, Total: total, Domain: domain, Role: role}
}

// ResultEvent carries one unit's outcome.
func ResultEvent(c Contact) Event {
	row := c.Row()
	return Event{Type: EventResult, Data: &row}
}

// UnitErrorEvent reports a non-fatal, unit-scoped failure.
func UnitErrorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg}
}

// FatalErrorEvent terminates a session as errored.
func FatalErrorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg, Fatal: true}
}

// CompleteEvent terminates a session that processed every unit.
func CompleteEvent(results []ContactRow) Event {
	return Event{Type: EventComplete, Processed: len(results), Results: results}
}

// StoppedEvent terminates a session that was cancelled between units.
func StoppedEvent(results []ContactRow) Event {
	return Event{Type: EventStopped, Processed: len(results), Results: results}
}
