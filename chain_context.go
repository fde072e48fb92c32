package actionchain

import (
	"github.com/google/uuid"

	"github.com/davidroman0O/actionchain/store"
)

// ChainContext is the tag set and keyed data shared by every action of one
// processing run. The run's root owns it; every action pushed on the
// execution stack during the run references the same instance. Only the
// top-of-stack action is active at any moment, so there is a single writer.
type ChainContext struct {
	runID string
	root  *Action
	tags  *store.TagSet
	data  *store.KVStore
}

func newChainContext(root *Action) *ChainContext {
	return &ChainContext{
		runID: uuid.NewString(),
		root:  root,
		tags:  store.NewTagSet(),
		data:  store.NewKVStore(),
	}
}

// RunID identifies the processing run this context belongs to.
func (c *ChainContext) RunID() string { return c.runID }

// Root returns the action owning the context, nil once cleared.
func (c *ChainContext) Root() *Action { return c.root }

// Tags returns the shared tag set.
func (c *ChainContext) Tags() *store.TagSet { return c.tags }

// Data returns the shared keyed data.
func (c *ChainContext) Data() *store.KVStore { return c.data }

func (c *ChainContext) clear() {
	c.tags.Clear()
	c.data.Clear()
	c.root = nil
}
