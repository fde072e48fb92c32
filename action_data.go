package actionchain

import (
	"errors"

	"github.com/davidroman0O/actionchain/store"
)

// ChainContext returns the context of the run the action takes part in, nil outside a run.
func (a *Action) ChainContext() *ChainContext { return a.chain }

// ChainTags returns the run's shared tag set, nil outside a run.
func (a *Action) ChainTags() *store.TagSet {
	if a.chain == nil {
		return nil
	}
	return a.chain.tags
}

// ChainData returns the run's shared data, nil outside a run.
func (a *Action) ChainData() *store.KVStore {
	if a.chain == nil {
		return nil
	}
	return a.chain.data
}

// Tags returns the action's own tags in insertion order.
func (a *Action) Tags() []string { return a.tags.List() }

// DataKeys returns the keys of the action's own data in insertion order.
func (a *Action) DataKeys() []string { return a.data.ListKeys() }

// checkMutable guards own/chain writes.
func (a *Action) checkMutable(inChain bool) error {
	if a.disposed {
		return actionError(ErrDisposed, a, StageNone)
	}
	if inChain && a.chain == nil {
		return actionError(ErrNoChainContext, a, StageNone)
	}
	return nil
}

// SetTag adds tag to the action. With inChain it is also added to the run's shared tags.
func (a *Action) SetTag(tag string, inChain bool) error {
	if err := a.checkMutable(inChain); err != nil {
		return err
	}
	if err := a.tags.Add(tag); err != nil {
		return err
	}
	if inChain {
		return a.chain.tags.Add(tag)
	}
	return nil
}

// RemoveTag removes tag from the action, and from the shared tags with inChain.
// It reports whether the tag was present anywhere it was removed from.
func (a *Action) RemoveTag(tag string, inChain bool) (bool, error) {
	if err := a.checkMutable(inChain); err != nil {
		return false, err
	}
	removed := a.tags.Remove(tag)
	if inChain && a.chain.tags.Remove(tag) {
		removed = true
	}
	return removed, nil
}

// HasTag checks the action's own tags, then the shared tags with inChain.
func (a *Action) HasTag(tag string, inChain bool) bool {
	if a.tags.Has(tag) {
		return true
	}
	return inChain && a.chain != nil && a.chain.tags.Has(tag)
}

// SetData stores value under key. With inChain it is also stored in the run's shared data.
func (a *Action) SetData(key string, value any, inChain bool) error {
	if err := a.checkMutable(inChain); err != nil {
		return err
	}
	if err := a.data.Put(key, value); err != nil {
		return err
	}
	if inChain {
		return a.chain.data.Put(key, value)
	}
	return nil
}

// RemoveData deletes key from own data, and from the shared data with inChain.
func (a *Action) RemoveData(key string, inChain bool) (bool, error) {
	if err := a.checkMutable(inChain); err != nil {
		return false, err
	}
	removed := a.data.Delete(key)
	if inChain && a.chain.data.Delete(key) {
		removed = true
	}
	return removed, nil
}

// lookupStores lists the stores searched for a lookup, own data first.
func (a *Action) lookupStores(inChain bool) []*store.KVStore {
	stores := []*store.KVStore{a.data}
	if inChain && a.chain != nil {
		stores = append(stores, a.chain.data)
	}
	return stores
}

// GetData returns the first value assignable to T, searching own data and
// then, with inChain, the run's shared data.
func GetData[T any](a *Action, inChain bool) (T, bool) {
	for _, s := range a.lookupStores(inChain) {
		if v, ok := store.First[T](s); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// GetDataByKey returns the value stored under key as T, searching own data
// and then, with inChain, the run's shared data. A key holding another type
// does not stop the search; its error is returned only when no store has a T.
func GetDataByKey[T any](a *Action, key string, inChain bool) (T, error) {
	var zero T
	var firstErr error
	for _, s := range a.lookupStores(inChain) {
		v, err := store.Get[T](s, key)
		if err == nil {
			return v, nil
		}
		if firstErr == nil && !errors.Is(err, store.ErrNotFound) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return zero, firstErr
	}
	return zero, store.ErrNotFound
}

// TryGetData is GetDataByKey reporting only whether a T was found.
func TryGetData[T any](a *Action, key string, inChain bool) (T, bool) {
	v, err := GetDataByKey[T](a, key, inChain)
	return v, err == nil
}

// GetAllData returns every value assignable to T, own data first.
func GetAllData[T any](a *Action, inChain bool) []T {
	out := []T{}
	for _, s := range a.lookupStores(inChain) {
		out = append(out, store.All[T](s)...)
	}
	return out
}
