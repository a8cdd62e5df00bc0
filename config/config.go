package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/nomis52/taskmonitor/task"
	"gopkg.in/yaml.v3"
)

const (
	// Default task settings
	defaultTaskName     = task.MakingTeaName
	defaultTickInterval = time.Second

	// Default listener settings
	defaultListenAddr = ":8080"

	// Default bus settings, matching the topics used by the activity classifier
	defaultDetectionsSubject = "ActivityDetections"
	defaultStatusSubject     = "TaskUpdates"
	defaultClientName        = "taskmonitor"

	// Default history settings
	defaultMaxSessions = 50

	// Default cron settings: republish the status every 30 seconds
	defaultCron = "refresh:@every 30s"

	// Default monitoring settings
	defaultMetricsPrefix = "taskmonitor"
	defaultJobName       = "taskmonitor"

	// Default logging settings
	defaultLogLevel   = "info"
	defaultLogFormat  = "json"
	defaultLogOutput  = "stdout"
	defaultMaxLogRows = 1000
)

// Config represents the complete application configuration
type Config struct {
	Task       TaskConfig       `yaml:"task"`
	Listener   ListenerConfig   `yaml:"listener"`
	NATS       NATSConfig       `yaml:"nats"`
	History    HistoryConfig    `yaml:"history"`
	Cron       string           `yaml:"cron"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TaskConfig selects the task to track.
type TaskConfig struct {
	// Name of a built-in task. Ignored when Custom is set.
	Name string `yaml:"name"`
	// Custom is an inline task definition.
	Custom *CustomTask `yaml:"custom,omitempty"`
	// TickInterval is the length of one countdown second. Shortened in tests and replays.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// CustomTask is a task definition read from the config file.
type CustomTask struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Items       []task.Item       `yaml:"items"`
	Steps       []task.Step       `yaml:"steps"`
	Transitions []task.Transition `yaml:"transitions"`
	Vocabulary  map[string]string `yaml:"vocabulary"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
}

// NATSConfig holds message bus settings. The bus is disabled when URL is empty.
type NATSConfig struct {
	URL               string `yaml:"url"`
	DetectionsSubject string `yaml:"detections_subject"`
	StatusSubject     string `yaml:"status_subject"`
	// QueueGroup lets several monitors share the detection stream.
	QueueGroup string `yaml:"queue_group"`
	ClientName string `yaml:"client_name"`
}

// HistoryConfig controls where finished sessions are kept.
type HistoryConfig struct {
	// StateDir stores session history on disk. History is kept in memory when empty.
	StateDir    string `yaml:"state_dir"`
	MaxSessions int    `yaml:"max_sessions"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	VictoriaMetricsURL string `yaml:"victoriametrics_url"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// LoggingConfig defines logging behavior settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
	// MaxSessionLogs caps the log entries captured per session.
	MaxSessionLogs int `yaml:"max_session_logs"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if c.Task.TickInterval <= 0 {
		return errors.New("task tick interval must be positive")
	}
	if c.Listener.Addr == "" {
		return errors.New("listener address is required")
	}
	if c.NATS.URL != "" && c.NATS.DetectionsSubject == c.NATS.StatusSubject {
		return fmt.Errorf("detections and status subjects must differ, both are %q", c.NATS.StatusSubject)
	}
	if c.History.MaxSessions < 0 {
		return errors.New("history max sessions must not be negative")
	}
	if c.Logging.MaxSessionLogs < 0 {
		return errors.New("max session logs must not be negative")
	}
	if _, err := c.Task.Definition(); err != nil {
		return err
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.Task.Name == "" {
		c.Task.Name = defaultTaskName
	}
	if c.Task.TickInterval == 0 {
		c.Task.TickInterval = defaultTickInterval
	}
	if c.Listener.Addr == "" {
		c.Listener.Addr = defaultListenAddr
	}
	if c.NATS.DetectionsSubject == "" {
		c.NATS.DetectionsSubject = defaultDetectionsSubject
	}
	if c.NATS.StatusSubject == "" {
		c.NATS.StatusSubject = defaultStatusSubject
	}
	if c.NATS.ClientName == "" {
		c.NATS.ClientName = defaultClientName
	}
	if c.History.MaxSessions == 0 {
		c.History.MaxSessions = defaultMaxSessions
	}
	if c.Cron == "" {
		c.Cron = defaultCron
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	// Set logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
	if c.Logging.MaxSessionLogs == 0 {
		c.Logging.MaxSessionLogs = defaultMaxLogRows
	}
}

// Redacted returns a copy of the config with credentials removed from URLs.
func (c *Config) Redacted() *Config {
	out := *c
	out.NATS.URL = redactURL(c.NATS.URL)
	out.Monitoring.VictoriaMetricsURL = redactURL(c.Monitoring.VictoriaMetricsURL)
	return &out
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

// Definition builds the configured task.
func (t TaskConfig) Definition() (*task.Definition, error) {
	if t.Custom == nil {
		return task.Lookup(t.Name)
	}
	return task.New(task.Spec{
		Name:        t.Custom.Name,
		Description: t.Custom.Description,
		Items:       t.Custom.Items,
		Steps:       t.Custom.Steps,
		Transitions: t.Custom.Transitions,
		Vocabulary:  t.Custom.Vocabulary,
	})
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}
