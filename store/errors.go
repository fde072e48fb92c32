package store

import "errors"

var (
	// ErrNotFound is returned when a key is not present in the store.
	ErrNotFound = errors.New("store: key not found")

	// ErrTypeMismatch is returned when the stored value cannot be returned as the requested type.
	ErrTypeMismatch = errors.New("store: type mismatch")

	// ErrEmptyKey is returned when an operation is given an empty key or tag.
	ErrEmptyKey = errors.New("store: key cannot be empty")
)
