package cron

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	triggerSeparator    = ";"
	actionSeparator     = ":"
	actionListSeparator = ","
)

// TriggerSpec represents a parsed trigger specification with actions and cron schedule.
type TriggerSpec struct {
	Actions  []string
	CronSpec string
}

// ParseTriggerSpecs parses a multi-trigger specification string into individual trigger specs.
// The format is: action1,action2:cron_expression;action3:cron_expression2
//
// Example:
//
//	"refresh:@every 30s;reset:0 0 * * *"
//
// Returns an error if:
//   - Any trigger is missing actions or cron expression
//   - Any action name is not in availableActions
//   - Any cron expression is invalid
//   - Any trigger has duplicate actions
func ParseTriggerSpecs(spec string, availableActions map[string]bool) ([]TriggerSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("cron spec cannot be empty")
	}

	triggerStrs := strings.Split(spec, triggerSeparator)
	specs := make([]TriggerSpec, 0, len(triggerStrs))

	for _, triggerStr := range triggerStrs {
		triggerStr = strings.TrimSpace(triggerStr)
		if triggerStr == "" {
			continue // e.g. trailing semicolon
		}

		triggerSpec, err := parseSingleTrigger(triggerStr, availableActions)
		if err != nil {
			return nil, err
		}
		specs = append(specs, triggerSpec)
	}

	if len(specs) == 0 {
		return nil, errors.New("no valid triggers found in cron spec")
	}

	return specs, nil
}

// parseSingleTrigger parses a single trigger specification.
func parseSingleTrigger(triggerStr string, availableActions map[string]bool) (TriggerSpec, error) {
	actionsStr, cronSpec, found := strings.Cut(triggerStr, actionSeparator)
	if !found {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: expected format 'actions:cron', got '%s'", triggerStr)
	}
	actionsStr = strings.TrimSpace(actionsStr)
	cronSpec = strings.TrimSpace(cronSpec)

	if actionsStr == "" {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: missing actions in '%s'", triggerStr)
	}
	if cronSpec == "" {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: missing cron schedule in '%s'", triggerStr)
	}

	actionStrs := strings.Split(actionsStr, actionListSeparator)
	actions := make([]string, 0, len(actionStrs))
	seen := make(map[string]bool, len(actionStrs))

	for _, a := range actionStrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if seen[a] {
			return TriggerSpec{}, fmt.Errorf("invalid trigger spec: duplicate action '%s' in '%s'", a, triggerStr)
		}
		seen[a] = true

		if !availableActions[a] {
			return TriggerSpec{}, fmt.Errorf("invalid trigger spec: unknown action '%s' in '%s' (available: %s)",
				a, triggerStr, formatAvailableActions(availableActions))
		}
		actions = append(actions, a)
	}

	if len(actions) == 0 {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: no valid actions in '%s'", triggerStr)
	}

	if _, err := parser.Parse(cronSpec); err != nil {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: invalid cron expression in '%s': %w", triggerStr, err)
	}

	return TriggerSpec{
		Actions:  actions,
		CronSpec: cronSpec,
	}, nil
}

// formatAvailableActions lists the available actions, sorted, for error messages.
func formatAvailableActions(availableActions map[string]bool) string {
	actions := make([]string, 0, len(availableActions))
	for a := range availableActions {
		actions = append(actions, a)
	}
	slices.Sort(actions)
	return strings.Join(actions, ", ")
}
