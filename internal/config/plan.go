package config

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/davidroman0O/actionchain"
)

// LoadPlan reads an action plan from a YAML file. Param keys must not contain
// dots, since they are used as the key delimiter.
func LoadPlan(path string) (actionchain.ActionDef, error) {
	var def actionchain.ActionDef

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return def, fmt.Errorf("loading plan file %s: %w", path, err)
	}
	if err := k.Unmarshal("", &def); err != nil {
		return def, fmt.Errorf("unmarshalling plan: %w", err)
	}
	if err := validatePlan(def, "root"); err != nil {
		return def, fmt.Errorf("validating plan: %w", err)
	}
	return def, nil
}

// validatePlan checks that every node names an action and only uses
// stages that accept chained actions.
func validatePlan(def actionchain.ActionDef, path string) error {
	var errs []error
	if def.Action == "" {
		errs = append(errs, fmt.Errorf("%s: action is required", path))
	}
	for name, children := range def.Chains {
		stage, err := actionchain.ParseStage(name)
		if err != nil || !stage.IsAdvanceable() {
			errs = append(errs, fmt.Errorf("%s: chains.%s is not a chainable stage", path, name))
			continue
		}
		for i, child := range children {
			errs = append(errs, validatePlan(child, fmt.Sprintf("%s.chains.%s[%d]", path, name, i)))
		}
	}
	return errors.Join(errs...)
}
