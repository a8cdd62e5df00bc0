package tracker

import "github.com/nomis52/taskmonitor/logging"

// StateStore manages persistence of archived sessions.
type StateStore interface {
	// History returns archived sessions, most recent first.
	History() []SessionSummary
	// Logs returns the captured logs of an archived session.
	Logs(id string) []logging.LogEntry
	// Save archives a session.
	Save(SessionRecord) error
}
