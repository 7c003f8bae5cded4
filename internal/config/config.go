package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/petestewart/iterm-controller-sub000/internal/errors"
)

// Config represents the complete configuration surface.
type Config struct {
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Plan     PlanConfig     `mapstructure:"plan"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// MonitorConfig controls session polling behavior.
type MonitorConfig struct {
	// PollIntervalMs is the starting poll interval for new sessions.
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// MinPollIntervalMs is the adaptive scheduler's floor.
	MinPollIntervalMs int `mapstructure:"min_poll_interval_ms"`
	// MaxPollIntervalMs is the adaptive scheduler's ceiling.
	MaxPollIntervalMs int `mapstructure:"max_poll_interval_ms"`
	// OutputBufferSize is the per-session output ring buffer size in bytes.
	OutputBufferSize int `mapstructure:"output_buffer_size"`
	// CaptureLines is how many trailing lines to read from the provider
	// each poll cycle.
	CaptureLines int `mapstructure:"capture_lines"`
	// RecencyWindowMs is how recently output must have arrived for a quiet
	// session to still classify as working.
	RecencyWindowMs int `mapstructure:"recency_window_ms"`
	// GracefulCloseTimeoutMs is how long a graceful session close may take
	// before the force path is invoked.
	GracefulCloseTimeoutMs int `mapstructure:"graceful_close_timeout_ms"`
	// SubscriberBuffer is the bounded channel capacity per output subscriber.
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// PlanConfig controls plan document handling.
type PlanConfig struct {
	// File is the plan document filename, resolved relative to the project
	// directory.
	File string `mapstructure:"file"`
	// PRDFile is the product requirements document filename whose existence
	// feeds workflow stage readiness.
	PRDFile string `mapstructure:"prd_file"`
}

// WorkflowConfig controls stage automation.
type WorkflowConfig struct {
	// RulesFile is the per-project automation rules file, resolved relative
	// to the project directory.
	RulesFile string `mapstructure:"rules_file"`
	// ConfirmBeforeDispatch gates each automation command behind a
	// confirmation callback.
	ConfirmBeforeDispatch bool `mapstructure:"confirm_before_dispatch"`
	// Commands maps a stage name to a command dispatched on transition
	// into that stage. The rules file takes precedence when present.
	Commands map[string]string `mapstructure:"commands"`
	// PRPollIntervalMs is how often the pull request status is probed via
	// the gh CLI. Zero disables probing.
	PRPollIntervalMs int `mapstructure:"pr_poll_interval_ms"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level"`
	// Dir is where monitor.log is written. Empty means stderr.
	Dir string `mapstructure:"dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			PollIntervalMs:         1000,
			MinPollIntervalMs:      250,
			MaxPollIntervalMs:      5000,
			OutputBufferSize:       100000, // 100KB
			CaptureLines:           200,
			RecencyWindowMs:        2000,
			GracefulCloseTimeoutMs: 3000,
			SubscriberBuffer:       64,
		},
		Plan: PlanConfig{
			File:    "PLAN.md",
			PRDFile: "PRD.md",
		},
		Workflow: WorkflowConfig{
			RulesFile:             ".itc/workflow.yaml",
			ConfirmBeforeDispatch: false,
			Commands:              map[string]string{},
			PRPollIntervalMs:      30000,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	d := Default()

	viper.SetDefault("monitor.poll_interval_ms", d.Monitor.PollIntervalMs)
	viper.SetDefault("monitor.min_poll_interval_ms", d.Monitor.MinPollIntervalMs)
	viper.SetDefault("monitor.max_poll_interval_ms", d.Monitor.MaxPollIntervalMs)
	viper.SetDefault("monitor.output_buffer_size", d.Monitor.OutputBufferSize)
	viper.SetDefault("monitor.capture_lines", d.Monitor.CaptureLines)
	viper.SetDefault("monitor.recency_window_ms", d.Monitor.RecencyWindowMs)
	viper.SetDefault("monitor.graceful_close_timeout_ms", d.Monitor.GracefulCloseTimeoutMs)
	viper.SetDefault("monitor.subscriber_buffer", d.Monitor.SubscriberBuffer)

	viper.SetDefault("plan.file", d.Plan.File)
	viper.SetDefault("plan.prd_file", d.Plan.PRDFile)

	viper.SetDefault("workflow.rules_file", d.Workflow.RulesFile)
	viper.SetDefault("workflow.confirm_before_dispatch", d.Workflow.ConfirmBeforeDispatch)
	viper.SetDefault("workflow.commands", d.Workflow.Commands)
	viper.SetDefault("workflow.pr_poll_interval_ms", d.Workflow.PRPollIntervalMs)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.dir", d.Logging.Dir)
}

// Load unmarshals the current viper state into a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks interval bounds and buffer sizes.
func (c *Config) Validate() error {
	m := c.Monitor
	if m.MinPollIntervalMs <= 0 {
		return errors.NewValidationError("monitor.min_poll_interval_ms", "must be positive")
	}
	if m.MaxPollIntervalMs < m.MinPollIntervalMs {
		return errors.NewValidationError("monitor.max_poll_interval_ms", "must be >= min_poll_interval_ms")
	}
	if m.PollIntervalMs < m.MinPollIntervalMs || m.PollIntervalMs > m.MaxPollIntervalMs {
		return errors.NewValidationError("monitor.poll_interval_ms", "must lie within [min, max]")
	}
	if m.OutputBufferSize <= 0 {
		return errors.NewValidationError("monitor.output_buffer_size", "must be positive")
	}
	if m.SubscriberBuffer <= 0 {
		return errors.NewValidationError("monitor.subscriber_buffer", "must be positive")
	}
	if c.Plan.File == "" {
		return errors.NewValidationError("plan.file", "must not be empty")
	}
	if c.Workflow.PRPollIntervalMs < 0 {
		return errors.NewValidationError("workflow.pr_poll_interval_ms", "must not be negative")
	}
	return nil
}

// PollInterval returns the default poll interval as a duration.
func (m MonitorConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalMs) * time.Millisecond
}

// MinPollInterval returns the scheduler floor as a duration.
func (m MonitorConfig) MinPollInterval() time.Duration {
	return time.Duration(m.MinPollIntervalMs) * time.Millisecond
}

// MaxPollInterval returns the scheduler ceiling as a duration.
func (m MonitorConfig) MaxPollInterval() time.Duration {
	return time.Duration(m.MaxPollIntervalMs) * time.Millisecond
}

// RecencyWindow returns the working-state recency window as a duration.
func (m MonitorConfig) RecencyWindow() time.Duration {
	return time.Duration(m.RecencyWindowMs) * time.Millisecond
}

// GracefulCloseTimeout returns the close escalation deadline as a duration.
func (m MonitorConfig) GracefulCloseTimeout() time.Duration {
	return time.Duration(m.GracefulCloseTimeoutMs) * time.Millisecond
}

// PRPollInterval returns the pull request probe cadence as a duration.
// Zero means probing is disabled.
func (w WorkflowConfig) PRPollInterval() time.Duration {
	return time.Duration(w.PRPollIntervalMs) * time.Millisecond
}

// ConfigDir returns the directory where the global config file lives.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "itc")
}
