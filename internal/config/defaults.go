package config

const (
	defaultMetricsNamespace = "actionchain"
	defaultServiceName      = "actionchain"
	defaultJournalDSN       = "file:actionchain-journal.db"
)

// defaults returns the default configuration values.
// These are loaded first and can be overridden by the YAML file and env vars.
func defaults() map[string]any {
	return map[string]any{
		"log.level":              "info",
		"log.format":             "text",
		"processor.debug_events": false,
		"processor.recover":      true,
		"metrics.enabled":        false,
		"metrics.namespace":      defaultMetricsNamespace,
		"tracing.enabled":        false,
		"tracing.service_name":   defaultServiceName,
		"journal.enabled":        false,
		"journal.dsn":            defaultJournalDSN,
		"plan.file":              "",
	}
}
