// Package cron provides cron-based scheduling of tracker actions.
//
// The CronTrigger type wraps a function and executes it according to a cron
// schedule. It is designed to be started once and run until the context is
// cancelled.
//
// Schedules use the standard five fields, an optional leading seconds field,
// or a descriptor such as "@hourly" or "@every 30s".
//
// Example usage:
//
//	trigger, err := cron.NewCronTrigger("@every 30s", refresh, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	trigger.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()        // Wait for shutdown signal
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// RunFunc is the work done on each scheduled run.
type RunFunc func() error

// CronTrigger executes a RunFunc according to a cron schedule.
type CronTrigger struct {
	spec     string
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger
}

// NewCronTrigger creates a new CronTrigger with the given cron specification.
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewCronTrigger(spec string, run RunFunc, logger *slog.Logger) (*CronTrigger, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &CronTrigger{
		spec:     spec,
		schedule: schedule,
		run:      run,
		logger:   logger,
	}, nil
}

// Start launches a goroutine that triggers runs according to the cron schedule.
// Returns immediately. The goroutine exits when ctx is cancelled.
func (ct *CronTrigger) Start(ctx context.Context) {
	go ct.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (ct *CronTrigger) NextRun() time.Time {
	return ct.schedule.Next(time.Now())
}

// loop is the main scheduling loop that runs in a goroutine.
func (ct *CronTrigger) loop(ctx context.Context) {
	for {
		nextRun := ct.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(nextRun))

		ct.logger.Debug("waiting for next scheduled run", "schedule", ct.spec, "next_run", nextRun)

		select {
		case <-ctx.Done():
			timer.Stop()
			ct.logger.Debug("cron trigger shutting down", "schedule", ct.spec)
			return
		case <-timer.C:
			ct.execute()
		}
	}
}

func (ct *CronTrigger) execute() {
	if err := ct.run(); err != nil {
		ct.logger.Warn("scheduled run failed", "schedule", ct.spec, "error", err)
		return
	}
	ct.logger.Debug("scheduled run completed", "schedule", ct.spec)
}
