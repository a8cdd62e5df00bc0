package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teaSpec() Spec {
	return Spec{
		Name:        "tea",
		Description: "make some tea",
		Items:       []Item{{Name: "cup", Quantity: 1}},
		Steps: []Step{
			{Name: "pour"},
			{Name: "place_bag"},
			{Name: "steep", DurationSeconds: 20},
			{Name: "enjoy"},
		},
		Transitions: []Transition{
			{Trigger: "open_bottle", Source: "pour", Destination: "place_bag"},
			{Trigger: "make_tea", Source: "place_bag", Destination: "steep"},
		},
		Vocabulary: map[string]string{
			"opening bottle": "open_bottle",
			"making tea":     "make_tea",
		},
	}
}

func TestNew(t *testing.T) {
	def, err := New(teaSpec())
	require.NoError(t, err)

	assert.Equal(t, "tea", def.Name())
	assert.Equal(t, "make some tea", def.Description())
	assert.Equal(t, "pour", def.InitialStep().Name)
	assert.Len(t, def.Steps(), 4)
	assert.Len(t, def.Transitions(), 2)
	assert.Equal(t, []Item{{Name: "cup", Quantity: 1}}, def.Items())

	trigger, ok := def.TriggerFor("making tea")
	assert.True(t, ok)
	assert.Equal(t, "make_tea", trigger)

	_, ok = def.TriggerFor("juggling")
	assert.False(t, ok)

	step, ok := def.Step("steep")
	require.True(t, ok)
	assert.True(t, step.Timed())
	assert.Equal(t, 2, def.StepIndex("steep"))
	assert.Equal(t, -1, def.StepIndex("missing"))
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
	}{
		{
			name:   "missing name",
			mutate: func(s *Spec) { s.Name = "" },
		},
		{
			name:   "no steps",
			mutate: func(s *Spec) { s.Steps = nil },
		},
		{
			name:   "duplicate step",
			mutate: func(s *Spec) { s.Steps = append(s.Steps, Step{Name: "pour"}) },
		},
		{
			name:   "unnamed step",
			mutate: func(s *Spec) { s.Steps[1].Name = "" },
		},
		{
			name:   "negative duration",
			mutate: func(s *Spec) { s.Steps[0].DurationSeconds = -1 },
		},
		{
			name:   "timed last step",
			mutate: func(s *Spec) { s.Steps[3].DurationSeconds = 5 },
		},
		{
			name: "undefined source step",
			mutate: func(s *Spec) {
				s.Transitions = append(s.Transitions, Transition{Trigger: "x", Source: "nowhere", Destination: "enjoy"})
			},
		},
		{
			name: "undefined destination step",
			mutate: func(s *Spec) {
				s.Transitions = append(s.Transitions, Transition{Trigger: "x", Source: "pour", Destination: "nowhere"})
			},
		},
		{
			name: "empty trigger",
			mutate: func(s *Spec) {
				s.Transitions = append(s.Transitions, Transition{Source: "pour", Destination: "enjoy"})
			},
		},
		{
			name:   "vocabulary maps to undefined trigger",
			mutate: func(s *Spec) { s.Vocabulary["dancing"] = "dance" },
		},
		{
			name:   "unnamed item",
			mutate: func(s *Spec) { s.Items = append(s.Items, Item{Quantity: 2}) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := teaSpec()
			tt.mutate(&spec)
			def, err := New(spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Nil(t, def)
		})
	}
}

func TestNew_AllowTimedFinalStep(t *testing.T) {
	spec := teaSpec()
	spec.Steps[3].DurationSeconds = 5

	def, err := New(spec, AllowTimedFinalStep())
	require.NoError(t, err)
	step, _ := def.Step("enjoy")
	assert.True(t, step.Timed())
}

func TestDefinition_Immutable(t *testing.T) {
	spec := teaSpec()
	def, err := New(spec)
	require.NoError(t, err)

	// Changing the input after construction must not leak in.
	spec.Steps[0].Name = "changed"
	spec.Vocabulary["opening bottle"] = "changed"
	assert.Equal(t, "pour", def.InitialStep().Name)
	trigger, _ := def.TriggerFor("opening bottle")
	assert.Equal(t, "open_bottle", trigger)

	// Nor should changing what the accessors return.
	steps := def.Steps()
	steps[0].Name = "changed"
	vocab := def.Vocabulary()
	vocab["new"] = "open_bottle"
	assert.Equal(t, "pour", def.Steps()[0].Name)
	_, ok := def.TriggerFor("new")
	assert.False(t, ok)
}

func TestHumanReadable(t *testing.T) {
	assert.Equal(t, "steep for 20 seconds", HumanReadable("steep_for_20_seconds"))
	assert.Equal(t, "enjoy", HumanReadable("enjoy"))
}

func TestLookup(t *testing.T) {
	def, err := Lookup(MakingTeaName)
	require.NoError(t, err)
	assert.Equal(t, "Making Tea", def.Name())
	assert.Equal(t, "open_bottle_and_pour_water_into_cup", def.InitialStep().Name)

	step, ok := def.Step("steep_for_20_seconds")
	require.True(t, ok)
	assert.Equal(t, 20, step.DurationSeconds)

	_, err = Lookup("juggling")
	assert.Error(t, err)

	assert.Equal(t, []string{MakingTeaName}, Names())
}
