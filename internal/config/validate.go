package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks all configuration values and returns aggregated errors.
func (c *Config) Validate() error {
	return errors.Join(
		c.Log.validate(),
		c.Metrics.validate(),
		c.Tracing.validate(),
		c.Journal.validate(),
	)
}

func (l *LogConfig) validate() error {
	var errs []error

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", l.Level))
	}

	switch l.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: json, text; got %q", l.Format))
	}

	return errors.Join(errs...)
}

func (m *MetricsConfig) validate() error {
	if !m.Enabled {
		return nil
	}
	if strings.TrimSpace(m.Namespace) == "" {
		return errors.New("metrics.namespace must not be empty when metrics are enabled")
	}
	if strings.ContainsAny(m.Namespace, " -.") {
		return fmt.Errorf("metrics.namespace must be a valid metric name prefix, got %q", m.Namespace)
	}
	return nil
}

func (t *TracingConfig) validate() error {
	if t.Enabled && strings.TrimSpace(t.ServiceName) == "" {
		return errors.New("tracing.service_name must not be empty when tracing is enabled")
	}
	return nil
}

func (j *JournalConfig) validate() error {
	if j.Enabled && strings.TrimSpace(j.DSN) == "" {
		return errors.New("journal.dsn must not be empty when the journal is enabled")
	}
	return nil
}
