package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/nomis52/taskmonitor/logging"
)

var errNoID = errors.New("cannot save session without an ID")

// DiskStore persists session history to disk as JSON files.
type DiskStore struct {
	dir       string
	logger    *slog.Logger
	maxCount  int
	summaries []SessionSummary              // protected by mu
	logs      map[string][]logging.LogEntry // protected by mu
	files     map[string]string             // session ID to file path, protected by mu
	mu        sync.Mutex
}

// NewDiskStore creates a new disk-backed store.
// The directory is created if it doesn't exist, and existing sessions are loaded.
func NewDiskStore(dir string, maxCount int, logger *slog.Logger) (*DiskStore, error) {
	s := &DiskStore{
		dir:       dir,
		logger:    logger,
		maxCount:  maxCount,
		summaries: make([]SessionSummary, 0),
		logs:      make(map[string][]logging.LogEntry),
		files:     make(map[string]string),
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := s.Reload(); err != nil {
		// Continue without existing data
		logger.Warn("failed to load existing sessions", "error", err)
	}

	return s, nil
}

// History returns all sessions as summaries.
func (s *DiskStore) History() []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.summaries)
}

// Logs returns the captured logs for a specific session.
func (s *DiskStore) Logs(id string) []logging.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.logs[id])
}

// Save writes a session to disk and updates the in-memory representation.
// Files beyond maxCount are removed, oldest first.
func (s *DiskStore) Save(record SessionRecord) error {
	if record.ID == "" {
		return errNoID
	}
	if record.StartedAt.IsZero() {
		return fmt.Errorf("cannot save session %s without start time", record.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 2006-01-02T15-04-05-<id>.json sorts by start time
	filename := record.StartedAt.UTC().Format("2006-01-02T15-04-05") + "-" + record.ID + ".json"
	path := filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	// Prepend to keep most recent first
	s.summaries = append([]SessionSummary{record.SessionSummary}, s.summaries...)
	s.logs[record.ID] = record.Logs
	s.files[record.ID] = path

	if s.maxCount > 0 {
		for len(s.summaries) > s.maxCount {
			oldest := s.summaries[len(s.summaries)-1]
			if err := os.Remove(s.files[oldest.ID]); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("failed to remove old session file", "id", oldest.ID, "error", err)
			}
			delete(s.logs, oldest.ID)
			delete(s.files, oldest.ID)
			s.summaries = s.summaries[:len(s.summaries)-1]
		}
	}

	s.logger.Debug("saved session to disk", "path", path)
	return nil
}

// Reload re-loads all sessions from disk.
func (s *DiskStore) Reload() error {
	records, files, err := s.load()
	if err != nil {
		return err
	}

	summaries := make([]SessionSummary, len(records))
	logs := make(map[string][]logging.LogEntry, len(records))
	kept := make(map[string]string, len(records))
	for i, record := range records {
		summaries[i] = record.SessionSummary
		logs[record.ID] = record.Logs
		kept[record.ID] = files[record.ID]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = summaries
	s.logs = logs
	s.files = kept
	return nil
}

// load reads every session file, most recent first, limited to maxCount.
func (s *DiskStore) load() ([]SessionRecord, map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	records := make([]SessionRecord, 0, len(entries))
	files := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read session file", "file", path, "error", err)
			continue
		}

		var record SessionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.Warn("failed to parse session file", "file", path, "error", err)
			continue
		}
		if record.ID == "" {
			s.logger.Warn("ignoring session file without ID", "file", path)
			continue
		}

		records = append(records, record)
		files[record.ID] = path
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	if s.maxCount > 0 && len(records) > s.maxCount {
		records = records[:s.maxCount]
	}

	s.logger.Info("loaded session history from disk", "count", len(records))
	return records, files, nil
}
