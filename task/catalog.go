package task

import (
	"fmt"
	"slices"
	"strings"
)

// MakingTeaName is the catalog name of the tea making task.
const MakingTeaName = "making_tea"

// builders holds the built-in task definitions keyed by catalog name.
var builders = map[string]func() (*Definition, error){
	MakingTeaName: MakingTea,
}

// MakingTea returns the tea making demo task.
func MakingTea() (*Definition, error) {
	return New(Spec{
		Name: "Making Tea",
		Description: "Open the water bottle and pour the water into a tea cup." +
			" Place the tea bag in the cup." +
			" Wait 20 seconds while the tea bag steeps, then drink and enjoy!",
		Items: []Item{
			{Name: "water bottle", Quantity: 1},
			{Name: "tea bag", Quantity: 1},
			{Name: "cup", Quantity: 1},
		},
		Steps: []Step{
			{Name: "open_bottle_and_pour_water_into_cup"},
			{Name: "place_tea_bag_into_cup"},
			{Name: "steep_for_20_seconds", DurationSeconds: 20},
			{Name: "enjoy"},
		},
		Transitions: []Transition{
			{Trigger: "open_bottle", Source: "open_bottle_and_pour_water_into_cup", Destination: "place_tea_bag_into_cup"},
			{Trigger: "make_tea", Source: "place_tea_bag_into_cup", Destination: "steep_for_20_seconds"},
		},
		Vocabulary: map[string]string{
			"opening bottle": "open_bottle",
			"making tea":     "make_tea",
		},
	})
}

// Lookup returns the built-in definition registered under name.
func Lookup(name string) (*Definition, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q, available: %s", name, strings.Join(Names(), ", "))
	}
	return build()
}

// Names returns the sorted catalog names.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
