package actionchain

import (
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// ActionDef is a serializable description of an action tree. Action names a
// factory in a Registry; Chains lists children per stage name
// ("pre-processing", "processing", "post-processing" or "cancelled").
type ActionDef struct {
	Action string                 `json:"action" koanf:"action" jsonschema:"required,minLength=1"`
	Name   string                 `json:"name,omitempty" koanf:"name"`
	Tags   []string               `json:"tags,omitempty" koanf:"tags"`
	Params map[string]any         `json:"params,omitempty" koanf:"params"`
	Chains map[string][]ActionDef `json:"chains,omitempty" koanf:"chains"`
}

// planStages fixes the order in which per-stage children are attached.
var planStages = []Stage{StagePreProcessing, StageProcessing, StagePostProcessing, StageCancelled}

// Build instantiates def and every chained definition below it. Params become
// own data of the built action in sorted key order, tags become own tags, and
// a non-empty Name overrides the factory's name. Children are pre-chained onto
// their stage, so they run before anything the handlers chain at runtime.
func (r *Registry) Build(def ActionDef) (*Action, error) {
	a, err := r.New(def.Action)
	if err != nil {
		return nil, err
	}

	if def.Name != "" {
		if err := a.SetName(def.Name); err != nil {
			return nil, err
		}
	}
	for _, tag := range def.Tags {
		if err := a.SetTag(tag, false); err != nil {
			return nil, fmt.Errorf("action %q: %w", def.Action, err)
		}
	}
	keys := make([]string, 0, len(def.Params))
	for key := range def.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := a.SetData(key, def.Params[key], false); err != nil {
			return nil, fmt.Errorf("action %q param %q: %w", def.Action, key, err)
		}
	}

	byStage := make(map[Stage][]ActionDef, len(def.Chains))
	for name, children := range def.Chains {
		stage, err := ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", def.Action, err)
		}
		if !stage.IsAdvanceable() {
			return nil, fmt.Errorf("action %q: %w: %s", def.Action, ErrInvalidStage, stage)
		}
		byStage[stage] = append(byStage[stage], children...)
	}

	for _, stage := range planStages {
		for _, childDef := range byStage[stage] {
			child, err := r.Build(childDef)
			if err != nil {
				return nil, err
			}
			if err := a.ChainActionAt(child, stage); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// PlanSchema returns the JSON Schema describing ActionDef documents.
func PlanSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&ActionDef{})
}
