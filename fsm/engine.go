// Package fsm tracks the current step of a task.
//
// The Engine offers two independent ways of moving between steps:
//
//   - ApplyTrigger follows the definition's transition graph.
//   - AdvanceToNextInSequence ignores the graph and moves to the step that
//     follows the current one in the definition's step order. It is used when a
//     timed step expires.
//
// An Engine is not safe for concurrent use. Callers serialise access.
package fsm

import (
	"errors"
	"fmt"

	"github.com/nomis52/taskmonitor/task"
)

var (
	// ErrNoSuchTransition is returned when no transition out of the current
	// step matches the trigger. The engine state is left unchanged.
	ErrNoSuchTransition = errors.New("no such transition")

	// ErrNoNextStep is returned when the current step is last in sequence.
	ErrNoNextStep = errors.New("no next step")
)

// StepChange describes a move between two steps.
type StepChange struct {
	From    string
	To      string
	Trigger string // empty for sequence advances
}

// Engine holds the step state for a single task instance.
type Engine struct {
	def      *task.Definition
	current  string
	previous string
	// nextTrigger is sticky: it keeps the last computed value when the
	// current step has no outgoing transition.
	nextTrigger    string
	hasNextTrigger bool
}

// New creates an Engine positioned at the definition's first step.
func New(def *task.Definition) *Engine {
	return &Engine{
		def:     def,
		current: def.InitialStep().Name,
	}
}

// Definition returns the task definition the engine runs.
func (e *Engine) Definition() *task.Definition {
	return e.def
}

// CurrentStep returns the name of the current step.
func (e *Engine) CurrentStep() string {
	return e.current
}

// PreviousStep returns the step before the last change, if any.
func (e *Engine) PreviousStep() (string, bool) {
	return e.previous, e.previous != ""
}

// ApplyTrigger moves along the first declared transition whose source is the
// current step and whose trigger matches.
func (e *Engine) ApplyTrigger(trigger string) (StepChange, error) {
	for _, t := range e.def.Transitions() {
		if t.Source == e.current && t.Trigger == trigger {
			change := StepChange{From: e.current, To: t.Destination, Trigger: trigger}
			e.move(t.Destination)
			return change, nil
		}
	}
	return StepChange{}, fmt.Errorf("%w: %q from step %q", ErrNoSuchTransition, trigger, e.current)
}

// AdvanceToNextInSequence moves to the step following the current one in the
// definition's step order.
func (e *Engine) AdvanceToNextInSequence() (StepChange, error) {
	steps := e.def.Steps()
	idx := e.def.StepIndex(e.current)
	if idx < 0 || idx+1 >= len(steps) {
		return StepChange{}, fmt.Errorf("%w: %q is the last step", ErrNoNextStep, e.current)
	}
	change := StepChange{From: e.current, To: steps[idx+1].Name}
	e.move(change.To)
	return change, nil
}

// PeekNextExpectedTrigger returns the trigger of the first declared transition
// out of the current step. If there is none it returns the value it last
// returned. The boolean is false only if no value has ever been computed.
func (e *Engine) PeekNextExpectedTrigger() (string, bool) {
	for _, t := range e.def.Transitions() {
		if t.Source == e.current {
			e.nextTrigger = t.Trigger
			e.hasNextTrigger = true
			break
		}
	}
	return e.nextTrigger, e.hasNextTrigger
}

func (e *Engine) move(to string) {
	e.previous = e.current
	e.current = to
}
