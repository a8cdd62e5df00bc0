package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nomis52/taskmonitor/messages"
)

// MaxLineSize is the longest accepted input line (256 KiB).
const MaxLineSize = 256 * 1024

// Record is one line of a replay file: an observation, optionally preceded by
// a pause.
type Record struct {
	messages.ActivityObservation
	// DelayMS is how long to wait before delivering the observation.
	DelayMS int `json:"delay_ms,omitempty"`
}

// Delay returns DelayMS as a duration.
func (r Record) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

// Decoder reads Records from an NDJSON stream. Blank lines and lines starting
// with '#' are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	lineNum int
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), MaxLineSize)
	return &Decoder{scanner: scanner}
}

// Decode returns the next record, or io.EOF at the end of the stream.
func (d *Decoder) Decode() (Record, error) {
	for d.scanner.Scan() {
		d.lineNum++
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, fmt.Errorf("failed to unmarshal line %d: %w", d.lineNum, err)
		}
		if rec.DelayMS < 0 {
			return Record{}, fmt.Errorf("line %d: delay_ms must not be negative", d.lineNum)
		}
		return rec, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("scanner error at line %d: %w", d.lineNum, err)
	}
	return Record{}, io.EOF
}

// Encoder writes one JSON document per line. It implements monitor.Publisher
// so a session can publish straight into it.
type Encoder struct {
	mu     sync.Mutex
	writer *bufio.Writer
	logger *slog.Logger
	count  int
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer, logger *slog.Logger) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w),
		logger: logger,
	}
}

// Encode writes v as a single JSON line and flushes it.
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := e.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := e.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	e.count++
	return nil
}

// Publish implements monitor.Publisher.
func (e *Encoder) Publish(_ context.Context, status messages.TaskStatus) error {
	if err := e.Encode(status); err != nil {
		e.logger.Error("failed to write status", "step", status.CurrentStep, "error", err)
		return err
	}
	return nil
}

// Count returns the number of lines written.
func (e *Encoder) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
