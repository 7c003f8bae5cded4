package config

import (
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	if cfg.Monitor.PollInterval() != time.Second {
		t.Errorf("poll interval = %s, want 1s", cfg.Monitor.PollInterval())
	}
	if cfg.Monitor.MinPollInterval() != 250*time.Millisecond {
		t.Errorf("min = %s, want 250ms", cfg.Monitor.MinPollInterval())
	}
	if cfg.Monitor.MaxPollInterval() != 5*time.Second {
		t.Errorf("max = %s, want 5s", cfg.Monitor.MaxPollInterval())
	}
	if cfg.Plan.File != "PLAN.md" {
		t.Errorf("plan file = %s, want PLAN.md", cfg.Plan.File)
	}
	if cfg.Workflow.RulesFile != ".itc/workflow.yaml" {
		t.Errorf("rules file = %s", cfg.Workflow.RulesFile)
	}
	if cfg.Workflow.PRPollInterval() != 30*time.Second {
		t.Errorf("pr poll interval = %s, want 30s", cfg.Workflow.PRPollInterval())
	}
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min interval", func(c *Config) { c.Monitor.MinPollIntervalMs = 0 }},
		{"max below min", func(c *Config) { c.Monitor.MaxPollIntervalMs = c.Monitor.MinPollIntervalMs - 1 }},
		{"initial below min", func(c *Config) { c.Monitor.PollIntervalMs = c.Monitor.MinPollIntervalMs - 1 }},
		{"initial above max", func(c *Config) { c.Monitor.PollIntervalMs = c.Monitor.MaxPollIntervalMs + 1 }},
		{"zero buffer", func(c *Config) { c.Monitor.OutputBufferSize = 0 }},
		{"zero subscriber buffer", func(c *Config) { c.Monitor.SubscriberBuffer = 0 }},
		{"empty plan file", func(c *Config) { c.Plan.File = "" }},
		{"negative pr poll interval", func(c *Config) { c.Workflow.PRPollIntervalMs = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate should reject %s", tt.name)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	m := MonitorConfig{
		RecencyWindowMs:        1500,
		GracefulCloseTimeoutMs: 4000,
	}
	if m.RecencyWindow() != 1500*time.Millisecond {
		t.Errorf("RecencyWindow = %s", m.RecencyWindow())
	}
	if m.GracefulCloseTimeout() != 4*time.Second {
		t.Errorf("GracefulCloseTimeout = %s", m.GracefulCloseTimeout())
	}
}
