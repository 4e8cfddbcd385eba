package config

import (
	"os"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
	"gopkg.in/yaml.v3"
)

// RetryPolicy is a platform's exponential-backoff-with-cap retry
// configuration.
type RetryPolicy struct {
	MaxAttempts        int     `yaml:"max_attempts"`
	BackoffSeconds     float64 `yaml:"backoff_seconds"`
	BackoffMultiplier  float64 `yaml:"backoff_multiplier"`
	MaxBackoffSeconds  float64 `yaml:"max_backoff_seconds"`
}

// PlatformEntry is one platform's row in the orchestrator config's
// platforms list.
type PlatformEntry struct {
	Name       string      `yaml:"name"`
	Enabled    bool        `yaml:"enabled"`
	Priority   int         `yaml:"priority"`
	Timeout    int         `yaml:"timeout"`
	DependsOn  []string    `yaml:"depends_on"`
	Retry      RetryPolicy `yaml:"retry"`
}

// OrchestratorSettings is the `orchestrator:` block.
type OrchestratorSettings struct {
	ParallelExecution bool `yaml:"parallel_execution"`
	MaxParallel       int  `yaml:"max_parallel"`
	ContinueOnFailure bool `yaml:"continue_on_failure"`
	GlobalTimeout     int  `yaml:"global_timeout"`
}

// OrchestratorConfig is the full orchestrator YAML document.
type OrchestratorConfig struct {
	Orchestrator   OrchestratorSettings `yaml:"orchestrator"`
	Platforms      []PlatformEntry      `yaml:"platforms"`
	ParallelGroups [][]string           `yaml:"parallel_groups"`
}

// LoadOrchestratorConfig reads and parses the orchestrator YAML document,
// applying defaults and then rejecting inconsistent settings via Validate.
func LoadOrchestratorConfig(path string) (*OrchestratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg OrchestratorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &errs.ConfigError{Field: path, Msg: err.Error()}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.Orchestrator.MaxParallel <= 0 {
		c.Orchestrator.MaxParallel = 1
	}
	for i := range c.Platforms {
		p := &c.Platforms[i]
		if p.Retry.MaxAttempts <= 0 {
			p.Retry.MaxAttempts = 1
		}
		if p.Retry.BackoffMultiplier <= 0 {
			p.Retry.BackoffMultiplier = 2.0
		}
		if p.Retry.MaxBackoffSeconds <= 0 {
			p.Retry.MaxBackoffSeconds = p.Retry.BackoffSeconds * 8
		}
	}
}

// PlatformByName finds a platform entry by name, or (zero, false).
func (c *OrchestratorConfig) PlatformByName(name string) (PlatformEntry, bool) {
	for _, p := range c.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return PlatformEntry{}, false
}
