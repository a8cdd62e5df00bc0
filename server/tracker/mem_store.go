package tracker

import (
	"slices"
	"sync"

	"github.com/nomis52/taskmonitor/logging"
)

// MemoryStore keeps session history in memory only (no persistence).
type MemoryStore struct {
	maxCount int
	records  []SessionRecord // most recent first, protected by mu
	mu       sync.Mutex
}

// NewMemoryStore creates a new in-memory store holding at most maxCount
// sessions. A maxCount of zero or less means unbounded.
func NewMemoryStore(maxCount int) *MemoryStore {
	return &MemoryStore{
		maxCount: maxCount,
		records:  make([]SessionRecord, 0),
	}
}

// History returns all sessions as summaries.
func (s *MemoryStore) History() []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]SessionSummary, len(s.records))
	for i, record := range s.records {
		result[i] = record.SessionSummary
	}
	return result
}

// Logs returns the captured logs for a specific session.
func (s *MemoryStore) Logs(id string) []logging.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.ID == id {
			return slices.Clone(record.Logs)
		}
	}
	return nil
}

// Save stores a session in memory.
func (s *MemoryStore) Save(record SessionRecord) error {
	if record.ID == "" {
		return errNoID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Prepend to keep most recent first
	s.records = append([]SessionRecord{record}, s.records...)
	if s.maxCount > 0 && len(s.records) > s.maxCount {
		s.records = s.records[:s.maxCount]
	}
	return nil
}
