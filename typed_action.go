package actionchain

import "context"

// MainFunc is the Processing handler of a TypedAction. It receives the
// action's parameters and returns a result whose success flag becomes the
// action's success.
type MainFunc[P any, R Result] func(ctx context.Context, a *TypedAction[P, R], params P) R

// TypedAction is an Action whose Processing stage maps parameters of type P
// to a result of type R.
type TypedAction[P any, R Result] struct {
	*Action

	params    P
	result    R
	hasResult bool
}

// NewTypedAction creates a typed action under construction. main replaces
// any main handler given through opts.
func NewTypedAction[P any, R Result](name string, main MainFunc[P, R], params P, opts ...ActionOption) *TypedAction[P, R] {
	t := &TypedAction[P, R]{params: params}
	t.Action = NewAction(name, opts...)

	if main != nil {
		t.Action.handlers[StageProcessing.slot()] = func(ctx context.Context, a *Action) {
			r := main(ctx, t, t.params)
			t.result = r
			t.hasResult = true
			if isNilResult(r) {
				a.result = Status(false)
			} else {
				a.result = r
			}
		}
	}
	return t
}

// Parameters returns the current parameters.
func (t *TypedAction[P, R]) Parameters() P { return t.params }

// SetParameters replaces the parameters. Handlers running before Processing
// may use it to rewrite the input of the main handler.
func (t *TypedAction[P, R]) SetParameters(params P) error {
	if t.disposed {
		return actionError(ErrDisposed, t.Action, StageNone)
	}
	t.params = params
	return nil
}

// Result returns the value produced by the main handler and whether it ran.
func (t *TypedAction[P, R]) Result() (R, bool) {
	return t.result, t.hasResult
}

// Execute runs the action to completion on processor and returns its result,
// its final parameters and its success.
func (t *TypedAction[P, R]) Execute(ctx context.Context, processor *Processor) (R, P, bool, error) {
	success, err := processor.Process(ctx, t.Action)
	return t.result, t.params, success, err
}
