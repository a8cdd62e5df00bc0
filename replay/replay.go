// Package replay drives a task session from a recorded stream of activity
// observations.
//
// Input is NDJSON, one ActivityObservation per line with an optional
// delay_ms field:
//
//	{"label_vec": ["opening bottle"]}
//	{"label_vec": ["making tea", "drinking"], "delay_ms": 500}
//
// Every status the session publishes is written to the output as NDJSON, so a
// replay produces the same stream a live monitor would send to the bus.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nomis52/taskmonitor/messages"
	"github.com/nomis52/taskmonitor/monitor"
	"github.com/nomis52/taskmonitor/task"
)

const pollInterval = 5 * time.Millisecond

// Options configures a replay.
type Options struct {
	// TickInterval is the length of one countdown second.
	TickInterval time.Duration
	// WaitForTimer keeps the session open after the input ends until a
	// running countdown has expired.
	WaitForTimer bool
	// IgnoreDelays delivers observations back to back.
	IgnoreDelays bool
	Metrics      *monitor.Metrics
	Logger       *slog.Logger
}

// Summary describes a finished replay.
type Summary struct {
	SessionID    string              `json:"session_id"`
	Observations int                 `json:"observations"`
	Statuses     int                 `json:"statuses"`
	Final        messages.TaskStatus `json:"final"`
}

// Run replays the observations read from in against a new session of def and
// writes the published statuses to out.
func Run(ctx context.Context, def *task.Definition, in io.Reader, out io.Writer, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enc := NewEncoder(out, logger)
	sessionOpts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithPublisher(enc),
	}
	if opts.TickInterval > 0 {
		sessionOpts = append(sessionOpts, monitor.WithTickInterval(opts.TickInterval))
	}
	if opts.Metrics != nil {
		sessionOpts = append(sessionOpts, monitor.WithMetrics(opts.Metrics))
	}

	session, err := monitor.New(def, sessionOpts...)
	if err != nil {
		return Summary{}, err
	}
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		return Summary{}, err
	}

	summary := Summary{SessionID: session.ID()}
	dec := NewDecoder(in)
	for {
		rec, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}

		if !opts.IgnoreDelays && rec.DelayMS > 0 {
			if err := sleep(ctx, rec.Delay()); err != nil {
				return summary, err
			}
		}
		if err := session.OnActivityObserved(ctx, rec.LabelCandidates); err != nil {
			return summary, fmt.Errorf("observation %d: %w", summary.Observations+1, err)
		}
		summary.Observations++
	}

	if opts.WaitForTimer {
		if err := waitForTimer(ctx, session); err != nil {
			return summary, err
		}
	}

	summary.Final = session.Snapshot()
	summary.Statuses = enc.Count()
	logger.Info("replay finished",
		"observations", summary.Observations,
		"statuses", summary.Statuses,
		"final_step", summary.Final.CurrentStep,
	)
	return summary, nil
}

func waitForTimer(ctx context.Context, session *monitor.Session) error {
	for session.Snapshot().TimerActive {
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
