// Package config loads settings for processes embedding the engine.
// Configuration is layered: defaults -> optional YAML file -> env vars.
package config

import (
	"github.com/davidroman0O/actionchain"
)

// Config holds all configuration.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Processor ProcessorConfig `koanf:"processor"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Journal   JournalConfig   `koanf:"journal"`
	Plan      PlanConfig      `koanf:"plan"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ProcessorConfig holds engine settings.
type ProcessorConfig struct {
	DebugEvents bool `koanf:"debug_events"`
	// Recover installs RecoveryMiddleware so a panicking handler fails its
	// action instead of aborting the run.
	Recover bool `koanf:"recover"`
}

// MetricsConfig holds Prometheus observer settings.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// TracingConfig holds OpenTelemetry observer settings.
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// JournalConfig holds lifecycle journal settings.
type JournalConfig struct {
	Enabled bool   `koanf:"enabled"`
	DSN     string `koanf:"dsn"`
}

// PlanConfig points at an action plan document. An empty File means the
// embedding program supplies its own plan.
type PlanConfig struct {
	File string `koanf:"file"`
}

// ProcessorSettings converts the processor section into the engine's Config.
func (c *Config) ProcessorSettings() actionchain.Config {
	return actionchain.Config{DebugEvents: c.Processor.DebugEvents}
}
