package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ACTIONCHAIN_"

// Option configures the Load function.
type Option func(*loadOptions)

type loadOptions struct {
	path string
}

// WithFile sets a YAML file layered over the defaults. Without it only
// defaults and environment variables are used.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.path = path
	}
}

// Load reads configuration using a 3-layer hierarchy (highest precedence last):
//
//  1. Built-in defaults
//  2. YAML file, when WithFile is given
//  3. Environment variables (ACTIONCHAIN_ prefix)
//
// Environment variables are matched against known keys first so that
// underscores inside field names survive:
//
//	ACTIONCHAIN_LOG_LEVEL               -> log.level
//	ACTIONCHAIN_PROCESSOR_DEBUG_EVENTS  -> processor.debug_events
//	ACTIONCHAIN_TRACING_SERVICE_NAME    -> tracing.service_name
func Load(opts ...Option) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")

	// Layer 1: defaults.
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	// Layer 2: optional file.
	if o.path != "" {
		if err := k.Load(file.Provider(o.path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", o.path, err)
		}
	}

	// Layer 3: environment variables.
	envLookup := buildEnvLookup(k.Keys())

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

			if koanfKey, ok := envLookup[key]; ok {
				return koanfKey, value
			}
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// buildEnvLookup maps env-style keys ("tracing_service_name") to koanf keys
// ("tracing.service_name").
func buildEnvLookup(keys []string) map[string]string {
	lookup := make(map[string]string, len(keys))
	for _, key := range keys {
		lookup[strings.ReplaceAll(key, ".", "_")] = key
	}
	return lookup
}
