package main

import (
	"fmt"

	"github.com/nomis52/taskmonitor/buildinfo"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskmonitor %s\n", buildinfo.Get())
		},
	}
}
