package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a config file and the task it selects",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				return fmt.Errorf("config flag (-c or --config) is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			def, err := cfg.Task.Definition()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration validation successful: %s (task %q, %d steps)\n",
				path, def.Name(), len(def.Steps()))
			return nil
		},
	}
}
