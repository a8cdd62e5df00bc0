package tracker

import (
	"time"

	"github.com/nomis52/taskmonitor/logging"
	"github.com/nomis52/taskmonitor/messages"
)

// SessionState describes where a session is in its lifecycle.
type SessionState int

const (
	// SessionStateActive indicates the session is receiving observations.
	SessionStateActive SessionState = iota
	// SessionStateArchived indicates the session was replaced or shut down.
	SessionStateArchived
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionStateActive:
		return "active"
	case SessionStateArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s SessionState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SessionState) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"active"`:
		*s = SessionStateActive
	default:
		*s = SessionStateArchived
	}
	return nil
}

// SessionSummary describes a session without its logs.
type SessionSummary struct {
	ID    string       `json:"id"`
	Task  string       `json:"task"`
	State SessionState `json:"state"`
	// StartedAt is when the session was created.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is nil while the session is active.
	EndedAt *time.Time `json:"ended_at,omitempty"`
	// Reason is why the session was archived, e.g. "reset" or "shutdown".
	Reason       string `json:"reason,omitempty"`
	Observations int    `json:"observations"`
	FinalStep    string `json:"final_step"`
	Degraded     bool   `json:"degraded,omitempty"`
}

// SessionRecord is an archived session as kept by a StateStore.
type SessionRecord struct {
	SessionSummary
	FinalStatus messages.TaskStatus `json:"final_status"`
	Logs        []logging.LogEntry  `json:"logs,omitempty"`
}
