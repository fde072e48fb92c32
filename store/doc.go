// Package store provides the ordered, type-aware collections used by actions
// and by the chain-scoped context shared across a processing run.
//
// The store package implements two thread-safe containers:
//
//   - KVStore: keyed values with their concrete types captured, iterated in
//     insertion order, with generic typed lookups by key, by type, or by
//     predicate.
//   - TagSet: an insertion-ordered set of string tags.
//
// Typed access goes through package-level generic functions because Go
// methods cannot declare type parameters:
//
//	s := store.NewKVStore()
//	_ = s.Put("target", &Unit{HP: 10})
//	unit, err := store.Get[*Unit](s, "target")
//	first, ok := store.First[*Unit](s)
//	all := store.All[*Unit](s)
//
// Overwriting an existing key keeps its original position in the iteration
// order; deleting and re-adding moves it to the end.
package store
