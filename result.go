package actionchain

import "reflect"

// Result is the outcome produced by an action's Processing stage.
type Result interface {
	Success() bool
}

// IsSuccessful reports whether result is non-nil and successful. A typed nil
// such as a nil pointer counts as nil and is never asked for its flag.
func IsSuccessful(result Result) bool {
	return !isNilResult(result) && result.Success()
}

func isNilResult(result Result) bool {
	if result == nil {
		return true
	}
	v := reflect.ValueOf(result)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Status is a bare success flag, used as the result of untyped actions.
type Status bool

// Success implements Result.
func (s Status) Success() bool { return bool(s) }

// Outcome is a typed value carrying a success flag.
type Outcome[T any] struct {
	Value T
	OK    bool
}

// Success implements Result.
func (o Outcome[T]) Success() bool { return o.OK }

// Succeeded wraps value as a successful outcome.
func Succeeded[T any](value T) Outcome[T] {
	return Outcome[T]{Value: value, OK: true}
}

// Failed wraps value as a failed outcome.
func Failed[T any](value T) Outcome[T] {
	return Outcome[T]{Value: value, OK: false}
}
