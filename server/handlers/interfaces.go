// Package handlers provides HTTP handlers for the taskmonitor server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"context"
	"time"

	"github.com/nomis52/taskmonitor/config"
	"github.com/nomis52/taskmonitor/logging"
	"github.com/nomis52/taskmonitor/messages"
	"github.com/nomis52/taskmonitor/server/tracker"
	"github.com/nomis52/taskmonitor/task"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// StatusProvider provides the live session status and the next heartbeat.
type StatusProvider interface {
	Status() (messages.TaskStatus, tracker.SessionSummary, error)
	NextRun() *time.Time
}

// TaskProvider provides the task run by the live session.
type TaskProvider interface {
	Definition() (*task.Definition, error)
}

// Observer accepts activity observations.
type Observer interface {
	Observe(ctx context.Context, obs messages.ActivityObservation) error
}

// Resetter archives the live session and starts a new one.
type Resetter interface {
	Reset(ctx context.Context, reason string) (tracker.SessionSummary, error)
}

// HistoryProvider provides access to session history.
type HistoryProvider interface {
	History() []tracker.SessionSummary
	Logs(id string) ([]logging.LogEntry, error)
}
