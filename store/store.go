package store

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/sasha-s/go-deadlock"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// entry is one stored value together with its captured concrete type.
type entry struct {
	typ      reflect.Type
	typeKind reflect.Kind
	value    any
}

// Item is a key/value pair handed out by iteration and predicate lookups.
type Item struct {
	Key   string
	Value any
}

// KVStore is a threadsafe, type‑aware, insertion-ordered in‑memory store.
type KVStore struct {
	mu   deadlock.RWMutex
	data *orderedmap.OrderedMap[string, entry]
}

// NewKVStore constructs an empty store.
func NewKVStore() *KVStore {
	return &KVStore{data: orderedmap.New[string, entry]()}
}

// Put stores any Go value under key, capturing its concrete type.
// Overwriting a key keeps its position in the iteration order.
func (s *KVStore) Put(key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}

	e := entry{typeKind: reflect.Invalid, value: value}
	if value != nil {
		e.typ = reflect.TypeOf(value)
		e.typeKind = e.typ.Kind()
	}

	s.mu.Lock()
	s.data.Set(key, e)
	s.mu.Unlock()
	return nil
}

// Get retrieves a value of type T for the given key.
func Get[T any](s *KVStore, key string) (T, error) {
	var zero T
	if key == "" {
		return zero, ErrEmptyKey
	}

	s.mu.RLock()
	e, ok := s.data.Get(key)
	s.mu.RUnlock()

	if !ok {
		return zero, ErrNotFound
	}

	want := reflect.TypeOf((*T)(nil)).Elem()

	if e.value == nil {
		// nil is a valid zero value for interfaces, pointers, maps, slices...
		if canBeNil(want.Kind()) {
			return zero, nil
		}
		return zero, fmt.Errorf("%w: wanted %v, got nil", ErrTypeMismatch, want)
	}

	// If requesting an interface, check if the stored type implements it
	if want.Kind() == reflect.Interface {
		if !e.typ.Implements(want) {
			return zero, fmt.Errorf("%w: wanted interface %v, got %v which doesn't implement it",
				ErrTypeMismatch, want, e.typ)
		}
		return e.value.(T), nil
	}

	// For non-interface types, require an exact match
	if e.typ != want {
		return zero, fmt.Errorf("%w: wanted %v (kind: %v), got %v (kind: %v)",
			ErrTypeMismatch, want, want.Kind(), e.typ, e.typeKind)
	}

	return e.value.(T), nil
}

// GetOrDefault retrieves a value of type T for the given key, falling back
// to defaultValue when the key is absent.
func GetOrDefault[T any](s *KVStore, key string, defaultValue T) (T, error) {
	value, err := Get[T](s, key)
	if err == ErrNotFound {
		return defaultValue, nil
	}
	return value, err
}

// First returns the first value, in insertion order, assignable to T.
func First[T any](s *KVStore) (T, bool) {
	for _, item := range s.snapshot() {
		if v, ok := item.Value.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// All returns every value assignable to T, in insertion order.
func All[T any](s *KVStore) []T {
	out := []T{}
	for _, item := range s.snapshot() {
		if v, ok := item.Value.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// KeysByType returns all keys whose stored value has exactly type T.
func KeysByType[T any](s *KVStore) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := reflect.TypeOf((*T)(nil)).Elem()
	keys := []string{}

	for pair := s.data.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.typ == want {
			keys = append(keys, pair.Key)
		}
	}
	return keys
}

// Has reports whether key is present.
func (s *KVStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.Get(key)
	return ok
}

// Value returns the raw value stored under key.
func (s *KVStore) Value(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data.Get(key)
	return e.value, ok
}

// Find returns the first item, in insertion order, matching the predicate.
// The predicate runs without the store lock held.
func (s *KVStore) Find(match func(Item) bool) (Item, bool) {
	for _, item := range s.snapshot() {
		if match(item) {
			return item, true
		}
	}
	return Item{}, false
}

// Range calls fn for every item in insertion order until fn returns false.
// The callback runs without the store lock held.
func (s *KVStore) Range(fn func(Item) bool) {
	for _, item := range s.snapshot() {
		if !fn(item) {
			return
		}
	}
}

// Delete removes a key from the store.
func (s *KVStore) Delete(key string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.data.Delete(key)
	return existed
}

// Clear removes all keys from the store.
func (s *KVStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = orderedmap.New[string, entry]()
}

// ListKeys returns all stored keys in insertion order.
func (s *KVStore) ListKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, s.data.Len())
	for pair := s.data.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Count returns the number of entries in the store.
func (s *KVStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Len()
}

// ListTypes returns the set of all concrete types stored, in first-seen order.
func (s *KVStore) ListTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[reflect.Type]struct{}{}
	out := []string{}

	for pair := s.data.Oldest(); pair != nil; pair = pair.Next() {
		typ := pair.Value.typ
		if typ == nil {
			continue
		}
		if _, ok := seen[typ]; ok {
			continue
		}
		seen[typ] = struct{}{}
		out = append(out, typ.String())
	}
	return out
}

// GetTypeSchema returns a JSON Schema representation of the stored value's type.
func (s *KVStore) GetTypeSchema(key string) (map[string]any, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.RLock()
	e, ok := s.data.Get(key)
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if e.typ == nil {
		return nil, fmt.Errorf("%w: key %q holds nil", ErrTypeMismatch, key)
	}

	return TypeToSchema(e.typ), nil
}

// snapshot copies the items out under the read lock so callers can run
// arbitrary code (including writes to this store) while iterating.
func (s *KVStore) snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0, s.data.Len())
	for pair := s.data.Oldest(); pair != nil; pair = pair.Next() {
		items = append(items, Item{Key: pair.Key, Value: pair.Value.value})
	}
	return items
}

// TypeToSchema converts a reflect.Type to a JSON schema.
func TypeToSchema(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.ReflectFromType(t)

	fallback := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return fallback
	}

	if _, exists := schemaMap["type"]; !exists {
		schemaMap["type"] = "object"
	}
	if t.Kind() == reflect.Struct {
		if _, exists := schemaMap["properties"]; !exists {
			schemaMap["properties"] = map[string]any{}
		}
	}

	return schemaMap
}

func canBeNil(kind reflect.Kind) bool {
	switch kind {
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}
