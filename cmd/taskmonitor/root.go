package main

import (
	"fmt"

	"github.com/nomis52/taskmonitor/config"
	"github.com/nomis52/taskmonitor/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskmonitor",
		Short: "Track progress through procedural tasks",
		Long: `taskmonitor follows a person through a procedural task, such as making tea,
using activity labels produced by a video classifier.

The server (cmd/server) tracks a live session over NATS. This tool replays
recorded observations offline and checks task definitions and config files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to config file (default: built-in defaults)")

	root.AddCommand(newReplayCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newTasksCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig reads the --config file, falling back to defaults when unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.LoadConfig(path)
	}

	cfg := &config.Config{}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
