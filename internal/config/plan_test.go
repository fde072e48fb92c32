package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidroman0O/actionchain/internal/config"
)

func TestLoadPlan(t *testing.T) {
	path := writeConfig(t, `
action: fetch
name: nightly-fetch
tags: [etl, nightly]
params:
  source: orders
  limit: 50
chains:
  processing:
    - action: transform
      chains:
        processing:
          - action: load
  post-processing:
    - action: notify
`)

	def, err := config.LoadPlan(path)
	require.NoError(t, err)

	assert.Equal(t, "fetch", def.Action)
	assert.Equal(t, "nightly-fetch", def.Name)
	assert.Equal(t, []string{"etl", "nightly"}, def.Tags)
	assert.Equal(t, "orders", def.Params["source"])
	assert.EqualValues(t, 50, def.Params["limit"])
	require.Len(t, def.Chains["processing"], 1)
	assert.Equal(t, "transform", def.Chains["processing"][0].Action)
	assert.Equal(t, "load", def.Chains["processing"][0].Chains["processing"][0].Action)
	assert.Equal(t, "notify", def.Chains["post-processing"][0].Action)
}

func TestLoadPlan_Invalid(t *testing.T) {
	path := writeConfig(t, `
name: no-action
chains:
  disposed:
    - action: x
  processing:
    - name: child-without-action
`)

	_, err := config.LoadPlan(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root: action is required")
	assert.Contains(t, err.Error(), "chains.disposed is not a chainable stage")
	assert.Contains(t, err.Error(), "root.chains.processing[0]: action is required")
}

func TestLoadPlan_MissingFile(t *testing.T) {
	_, err := config.LoadPlan("/nonexistent/plan.yaml")
	assert.Error(t, err)
}
