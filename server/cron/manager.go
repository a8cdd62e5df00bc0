package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Runnable is implemented by anything that can be triggered by the cron scheduler.
type Runnable interface {
	Run(actions []string) error
}

// CronTriggerManager manages multiple CronTrigger instances with different actions and schedules.
type CronTriggerManager struct {
	triggers []*CronTrigger
	logger   *slog.Logger
}

// NewCronTriggerManager creates a new CronTriggerManager from a multi-trigger specification.
// The spec format is: action1,action2:cron_expression;action3:cron_expression2
//
// Example:
//
//	"refresh:@every 30s;reset:0 0 * * *"
func NewCronTriggerManager(spec string, runnable Runnable, logger *slog.Logger, availableActions map[string]bool) (*CronTriggerManager, error) {
	triggerSpecs, err := ParseTriggerSpecs(spec, availableActions)
	if err != nil {
		return nil, err
	}

	triggers := make([]*CronTrigger, 0, len(triggerSpecs))
	for _, ts := range triggerSpecs {
		actions := ts.Actions
		trigger, err := NewCronTrigger(ts.CronSpec, func() error {
			return runnable.Run(actions)
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating trigger for '%s:%s': %w",
				strings.Join(ts.Actions, actionListSeparator), ts.CronSpec, err)
		}
		triggers = append(triggers, trigger)

		logger.Info("trigger registered",
			"actions", ts.Actions,
			"schedule", ts.CronSpec,
			"next_run", trigger.NextRun(),
		)
	}

	return &CronTriggerManager{
		triggers: triggers,
		logger:   logger,
	}, nil
}

// Start launches all triggers. Each trigger runs in its own goroutine.
// Returns immediately. All goroutines exit when ctx is cancelled.
func (m *CronTriggerManager) Start(ctx context.Context) {
	for _, trigger := range m.triggers {
		trigger.Start(ctx)
	}
}

// NextRun returns the earliest scheduled run time across all triggers.
// Returns zero time if there are no triggers.
func (m *CronTriggerManager) NextRun() time.Time {
	var earliest time.Time
	for _, trigger := range m.triggers {
		next := trigger.NextRun()
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}
