package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nomis52/taskmonitor/config"
	"github.com/nomis52/taskmonitor/logging"
	"github.com/nomis52/taskmonitor/metrics"
	"github.com/nomis52/taskmonitor/monitor"
	"github.com/nomis52/taskmonitor/replay"
	"github.com/nomis52/taskmonitor/task"
	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [observations.ndjson]",
		Short: "Replay recorded observations and print the published statuses",
		Long: `Replay reads activity observations as NDJSON, one per line, from the given
file or stdin and feeds them to a new session. Every status the session
publishes is written to stdout as NDJSON and a summary is written to stderr.

Lines may carry a delay_ms field to pause before the observation is delivered:

  {"label_vec": ["opening bottle"]}
  {"label_vec": ["making tea"], "delay_ms": 1500}

When monitoring.victoriametrics_url is configured, session metrics are pushed
to it while the replay runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReplay,
	}

	cmd.Flags().StringP("task", "t", "", "Built-in task to replay against (default: from config)")
	cmd.Flags().Duration("tick", 0, "Length of one countdown second (default: from config)")
	cmd.Flags().Bool("wait", false, "Wait for a running countdown to expire after the input ends")
	cmd.Flags().Bool("no-delay", false, "Ignore delay_ms and deliver observations back to back")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the statuses.
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	def, err := replayDefinition(cmd, cfg)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open observations: %w", err)
		}
		defer f.Close()
		in = f
	}

	tick, _ := cmd.Flags().GetDuration("tick")
	if tick <= 0 {
		tick = cfg.Task.TickInterval
	}
	wait, _ := cmd.Flags().GetBool("wait")
	noDelay, _ := cmd.Flags().GetBool("no-delay")

	sessionMetrics, err := replayMetrics(cfg, logger)
	if err != nil {
		return err
	}

	summary, err := replay.Run(cmd.Context(), def, in, cmd.OutOrStdout(), replay.Options{
		TickInterval: tick,
		WaitForTimer: wait,
		IgnoreDelays: noDelay,
		Metrics:      sessionMetrics,
		Logger:       logger.Logger,
	})
	if err != nil {
		return err
	}
	return writeSummary(cmd.ErrOrStderr(), summary)
}

func replayDefinition(cmd *cobra.Command, cfg *config.Config) (*task.Definition, error) {
	name, _ := cmd.Flags().GetString("task")
	if name != "" {
		return task.Lookup(name)
	}
	return cfg.Task.Definition()
}

// replayMetrics returns push metrics when a remote write endpoint is
// configured, nil otherwise.
func replayMetrics(cfg *config.Config, logger *logging.Logger) (*monitor.Metrics, error) {
	if cfg.Monitoring.VictoriaMetricsURL == "" {
		return nil, nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}

	logger.Info("pushing replay metrics", "url", cfg.Redacted().Monitoring.VictoriaMetricsURL)
	return monitor.NewMetrics(metrics.NewPushRegistry(metrics.PushConfig{
		URL:      cfg.Monitoring.VictoriaMetricsURL,
		Prefix:   cfg.Monitoring.MetricsPrefix,
		Job:      cfg.Monitoring.JobName,
		Instance: hostname,
		Logger:   logger.Logger,
	}))
}

func writeSummary(w io.Writer, summary replay.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
