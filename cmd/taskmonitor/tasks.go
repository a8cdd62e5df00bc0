package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nomis52/taskmonitor/task"
	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks [name]",
		Short: "List built-in tasks, or show the steps of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 0 {
				fmt.Fprintln(w, "NAME\tTASK\tSTEPS")
				for _, name := range task.Names() {
					def, err := task.Lookup(name)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%d\n", name, def.Name(), len(def.Steps()))
				}
				return nil
			}

			def, err := task.Lookup(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s: %s\n\n", def.Name(), def.Description())
			fmt.Fprintln(w, "#\tSTEP\tDURATION\tLEFT BY")
			for i, step := range def.Steps() {
				duration := "-"
				if step.Timed() {
					duration = fmt.Sprintf("%ds", step.DurationSeconds)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, task.HumanReadable(step.Name), duration, leftBy(def, step))
			}
			return nil
		},
	}
}

// leftBy describes how a step is left: by trigger, by timer, or not at all.
func leftBy(def *task.Definition, step task.Step) string {
	for _, t := range def.Transitions() {
		if t.Source == step.Name {
			return t.Trigger
		}
	}
	if step.Timed() {
		return "timer"
	}
	return "-"
}
