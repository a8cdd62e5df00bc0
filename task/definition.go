// Package task describes procedural tasks as immutable definitions.
//
// A Definition lists the ordered steps of a task, the items it needs, the
// transition graph between steps and the vocabulary that maps activity labels
// (as produced by an activity classifier) to transition triggers.
//
// Definitions are validated when constructed and never change afterwards:
//
//	def, err := task.New(task.Spec{
//		Name:  "Making Tea",
//		Steps: []task.Step{{Name: "pour"}, {Name: "steep", DurationSeconds: 20}, {Name: "enjoy"}},
//		Transitions: []task.Transition{
//			{Trigger: "pour_water", Source: "pour", Destination: "steep"},
//		},
//		Vocabulary: map[string]string{"pouring water": "pour_water"},
//	})
package task

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrInvalidDefinition is returned when a task definition is malformed.
var ErrInvalidDefinition = errors.New("invalid task definition")

// Step is one named stage of a task.
type Step struct {
	Name string `json:"name" yaml:"name"`
	// DurationSeconds makes the step time-bounded. Zero means the step is only
	// left through a trigger.
	DurationSeconds int `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
}

// Timed returns true if the step declares a duration.
func (s Step) Timed() bool {
	return s.DurationSeconds > 0
}

// Transition is an allowed move from Source to Destination when Trigger fires.
type Transition struct {
	Trigger     string `json:"trigger" yaml:"trigger"`
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
}

// Item is something needed to carry out the task.
type Item struct {
	Name     string `json:"item_name" yaml:"item_name"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

// Spec holds the raw fields used to build a Definition.
type Spec struct {
	Name        string
	Description string
	Items       []Item
	Steps       []Step
	Transitions []Transition
	// Vocabulary maps an activity label to a trigger name.
	Vocabulary map[string]string
}

// Definition is a validated, read-only task description.
type Definition struct {
	name        string
	description string
	items       []Item
	steps       []Step
	transitions []Transition
	vocabulary  map[string]string
	stepIndex   map[string]int
}

// Option adjusts validation in New.
type Option func(*options)

type options struct {
	allowTimedFinalStep bool
}

// AllowTimedFinalStep accepts a timed step in last position. Such a step has
// nowhere to auto-advance to; a session running it reports itself degraded
// when the timer expires.
func AllowTimedFinalStep() Option {
	return func(o *options) {
		o.allowTimedFinalStep = true
	}
}

// New validates spec and returns the resulting Definition.
// All errors wrap ErrInvalidDefinition.
func New(spec Spec, opts ...Option) (*Definition, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if spec.Name == "" {
		return nil, invalid("task name is required")
	}
	if len(spec.Steps) == 0 {
		return nil, invalid("task %q has no steps", spec.Name)
	}

	stepIndex := make(map[string]int, len(spec.Steps))
	for i, step := range spec.Steps {
		if step.Name == "" {
			return nil, invalid("step %d has no name", i)
		}
		if _, exists := stepIndex[step.Name]; exists {
			return nil, invalid("duplicate step %q", step.Name)
		}
		if step.DurationSeconds < 0 {
			return nil, invalid("step %q has negative duration %d", step.Name, step.DurationSeconds)
		}
		stepIndex[step.Name] = i
	}

	// A timed step auto-advances to the following step, so it can't be last.
	if last := spec.Steps[len(spec.Steps)-1]; last.Timed() && !o.allowTimedFinalStep {
		return nil, invalid("timed step %q is the last step", last.Name)
	}

	triggers := make(map[string]bool, len(spec.Transitions))
	for _, t := range spec.Transitions {
		if t.Trigger == "" {
			return nil, invalid("transition %s -> %s has no trigger", t.Source, t.Destination)
		}
		if _, ok := stepIndex[t.Source]; !ok {
			return nil, invalid("transition %q references undefined source step %q", t.Trigger, t.Source)
		}
		if _, ok := stepIndex[t.Destination]; !ok {
			return nil, invalid("transition %q references undefined destination step %q", t.Trigger, t.Destination)
		}
		triggers[t.Trigger] = true
	}

	for activity, trigger := range spec.Vocabulary {
		if !triggers[trigger] {
			return nil, invalid("activity %q maps to undefined trigger %q", activity, trigger)
		}
	}

	for _, item := range spec.Items {
		if item.Name == "" {
			return nil, invalid("item with no name")
		}
	}

	return &Definition{
		name:        spec.Name,
		description: spec.Description,
		items:       slices.Clone(spec.Items),
		steps:       slices.Clone(spec.Steps),
		transitions: slices.Clone(spec.Transitions),
		vocabulary:  maps.Clone(spec.Vocabulary),
		stepIndex:   stepIndex,
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

// Name returns the task name.
func (d *Definition) Name() string {
	return d.name
}

// Description returns the human-readable task description.
func (d *Definition) Description() string {
	return d.description
}

// Items returns a copy of the item inventory, in declaration order.
func (d *Definition) Items() []Item {
	return slices.Clone(d.items)
}

// Steps returns a copy of the steps, in sequence order.
func (d *Definition) Steps() []Step {
	return slices.Clone(d.steps)
}

// Transitions returns a copy of the transitions, in declaration order.
func (d *Definition) Transitions() []Transition {
	return slices.Clone(d.transitions)
}

// Vocabulary returns a copy of the activity to trigger mapping.
func (d *Definition) Vocabulary() map[string]string {
	return maps.Clone(d.vocabulary)
}

// TriggerFor returns the trigger the given activity label maps to.
func (d *Definition) TriggerFor(activity string) (string, bool) {
	trigger, ok := d.vocabulary[activity]
	return trigger, ok
}

// InitialStep returns the first step in sequence.
func (d *Definition) InitialStep() Step {
	return d.steps[0]
}

// Step returns the named step.
func (d *Definition) Step(name string) (Step, bool) {
	i, ok := d.stepIndex[name]
	if !ok {
		return Step{}, false
	}
	return d.steps[i], true
}

// StepIndex returns the position of the named step in the sequence, or -1.
func (d *Definition) StepIndex(name string) int {
	i, ok := d.stepIndex[name]
	if !ok {
		return -1
	}
	return i
}

// HumanReadable converts a step or trigger identifier for display.
func HumanReadable(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
