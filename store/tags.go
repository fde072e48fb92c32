package store

import (
	"github.com/sasha-s/go-deadlock"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TagSet is a threadsafe set of string tags that remembers insertion order.
type TagSet struct {
	mu   deadlock.RWMutex
	tags *orderedmap.OrderedMap[string, struct{}]
}

// NewTagSet creates a tag set holding the given tags.
func NewTagSet(tags ...string) *TagSet {
	ts := &TagSet{tags: orderedmap.New[string, struct{}]()}
	for _, tag := range tags {
		_ = ts.Add(tag)
	}
	return ts
}

// Add inserts a tag. Adding a tag that is already present is a no-op.
func (ts *TagSet) Add(tag string) error {
	if tag == "" {
		return ErrEmptyKey
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.tags.Get(tag); !ok {
		ts.tags.Set(tag, struct{}{})
	}
	return nil
}

// Remove deletes a tag and reports whether it was present.
func (ts *TagSet) Remove(tag string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, existed := ts.tags.Delete(tag)
	return existed
}

// Has reports whether the tag is present.
func (ts *TagSet) Has(tag string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.tags.Get(tag)
	return ok
}

// HasAll reports whether every given tag is present.
func (ts *TagSet) HasAll(tags ...string) bool {
	for _, tag := range tags {
		if !ts.Has(tag) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one of the given tags is present.
func (ts *TagSet) HasAny(tags ...string) bool {
	for _, tag := range tags {
		if ts.Has(tag) {
			return true
		}
	}
	return false
}

// List returns the tags in insertion order.
func (ts *TagSet) List() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]string, 0, ts.tags.Len())
	for pair := ts.tags.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of tags.
func (ts *TagSet) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.tags.Len()
}

// Clear removes every tag.
func (ts *TagSet) Clear() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.tags = orderedmap.New[string, struct{}]()
}
