package logging

import (
	"sync"
	"time"
)

// DefaultMaxEntries is the per-session cap used when none is configured.
const DefaultMaxEntries = 1000

// LogEntry represents a single captured log record.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// LogCollector stores captured log entries per session.
// When a session exceeds the cap, the oldest entries are dropped.
type LogCollector struct {
	mu         sync.RWMutex
	maxEntries int
	logs       map[string][]LogEntry // session ID -> entries
}

// NewLogCollector creates a LogCollector keeping at most maxEntries per
// session. A non-positive value selects DefaultMaxEntries.
func NewLogCollector(maxEntries int) *LogCollector {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &LogCollector{
		maxEntries: maxEntries,
		logs:       make(map[string][]LogEntry),
	}
}

// AddLog appends an entry for sessionID.
func (c *LogCollector) AddLog(sessionID string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.logs[sessionID], entry)
	if over := len(entries) - c.maxEntries; over > 0 {
		entries = append(entries[:0:0], entries[over:]...)
	}
	c.logs[sessionID] = entries
}

// GetLogs returns a copy of the entries for sessionID.
func (c *LogCollector) GetLogs(sessionID string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs, ok := c.logs[sessionID]
	if !ok {
		return nil
	}
	result := make([]LogEntry, len(logs))
	copy(result, logs)
	return result
}

// Take returns the entries for sessionID and forgets them.
func (c *LogCollector) Take(sessionID string) []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	logs := c.logs[sessionID]
	delete(c.logs, sessionID)
	return logs
}

// Sessions returns the number of sessions with captured logs.
func (c *LogCollector) Sessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.logs)
}
