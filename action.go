package actionchain

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/davidroman0O/actionchain/store"
)

var lastActionID atomic.Uint64

// HandlerFunc is a stage handler. It receives the action itself so it can read
// its tags and data, chain further actions, or mark it as cancelled.
type HandlerFunc func(ctx context.Context, a *Action)

// ActionOption configures an Action under construction.
type ActionOption func(*Action)

// WithPreHandler sets the PreProcessing handler.
func WithPreHandler(h HandlerFunc) ActionOption {
	return func(a *Action) { a.handlers[StagePreProcessing.slot()] = h }
}

// WithMainHandler sets the Processing handler.
func WithMainHandler(h HandlerFunc) ActionOption {
	return func(a *Action) { a.handlers[StageProcessing.slot()] = h }
}

// WithPostHandler sets the PostProcessing handler.
func WithPostHandler(h HandlerFunc) ActionOption {
	return func(a *Action) { a.handlers[StagePostProcessing.slot()] = h }
}

// WithCancelHandler sets the Cancelled handler.
func WithCancelHandler(h HandlerFunc) ActionOption {
	return func(a *Action) { a.handlers[StageCancelled.slot()] = h }
}

// WithTags adds own tags.
func WithTags(tags ...string) ActionOption {
	return func(a *Action) {
		for _, tag := range tags {
			_ = a.tags.Add(tag)
		}
	}
}

// WithData stores an own data entry.
func WithData(key string, value any) ActionOption {
	return func(a *Action) { _ = a.data.Put(key, value) }
}

// Action is a unit of work driven through the stage lifecycle by a Processor.
//
// An action is created under construction (handlers and name mutable), then
// sealed (handlers frozen), takes part in at most one processing run and is
// finally disposed. Actions are not safe for concurrent use; the processor
// only ever runs one action at a time.
type Action struct {
	id   uint64
	name string

	sealed   bool
	admitted bool
	disposed bool

	handlers     [4]HandlerFunc
	lastExecuted Stage
	chains       [4][]*Action

	tags  *store.TagSet
	data  *store.KVStore
	chain *ChainContext

	currentStage Stage
	lastEntered  Stage
	lastFinished Stage
	cancelled    bool

	result Result
	err    error
}

// NewAction creates an action under construction.
func NewAction(name string, opts ...ActionOption) *Action {
	a := &Action{
		id:   lastActionID.Add(1),
		name: name,
		tags: store.NewTagSet(),
		data: store.NewKVStore(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the process-unique identifier assigned at construction.
func (a *Action) ID() uint64 { return a.id }

// Name returns the action name.
func (a *Action) Name() string { return a.name }

// String formats the action as name#id.
func (a *Action) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", a.name, a.id)
}

// SetName renames the action while it is under construction.
func (a *Action) SetName(name string) error {
	if err := a.checkEditable(); err != nil {
		return err
	}
	a.name = name
	return nil
}

// SetPreHandler replaces the PreProcessing handler while under construction.
func (a *Action) SetPreHandler(h HandlerFunc) error { return a.setHandler(StagePreProcessing, h) }

// SetMainHandler replaces the Processing handler while under construction.
func (a *Action) SetMainHandler(h HandlerFunc) error { return a.setHandler(StageProcessing, h) }

// SetPostHandler replaces the PostProcessing handler while under construction.
func (a *Action) SetPostHandler(h HandlerFunc) error { return a.setHandler(StagePostProcessing, h) }

// SetCancelHandler replaces the Cancelled handler while under construction.
func (a *Action) SetCancelHandler(h HandlerFunc) error { return a.setHandler(StageCancelled, h) }

func (a *Action) setHandler(stage Stage, h HandlerFunc) error {
	if err := a.checkEditable(); err != nil {
		return err
	}
	a.handlers[stage.slot()] = h
	return nil
}

func (a *Action) checkEditable() error {
	if a.disposed {
		return actionError(ErrDisposed, a, StageNone)
	}
	if a.sealed {
		return actionError(ErrSealed, a, StageNone)
	}
	return nil
}

// Seal ends construction. Handlers and the name become immutable; tags,
// data and chaining stay available. Sealing twice fails with ErrSealed.
func (a *Action) Seal() error {
	if err := a.checkEditable(); err != nil {
		return err
	}
	a.sealed = true
	return nil
}

// IsSealed reports whether construction has ended.
func (a *Action) IsSealed() bool { return a.sealed }

// IsDisposed reports whether the action has been disposed.
func (a *Action) IsDisposed() bool { return a.disposed }

// IsAdmitted reports whether the action was enqueued on a processor or chained to another action.
func (a *Action) IsAdmitted() bool { return a.admitted }

// admit seals the action when needed and claims it for a single run.
func (a *Action) admit() error {
	if a.disposed {
		return actionError(ErrDisposed, a, StageNone)
	}
	if a.admitted {
		return actionError(ErrAlreadyAdmitted, a, StageNone)
	}
	a.sealed = true
	a.admitted = true
	return nil
}

// CurrentStage returns the stage being executed, or StageChaining while a chained action runs.
func (a *Action) CurrentStage() Stage { return a.currentStage }

// LastEnteredChainStage is the highest stage begun so far.
func (a *Action) LastEnteredChainStage() Stage { return a.lastEntered }

// LastFinishedChainStage is the highest stage fully drained (handler executed and queue empty).
func (a *Action) LastFinishedChainStage() Stage { return a.lastFinished }

// HasPassedStage reports whether stage has finished for this action.
func (a *Action) HasPassedStage(stage Stage) bool { return a.lastFinished >= stage }

// IsMarkedAsCancelled reports whether MarkAsCancelled was accepted.
func (a *Action) IsMarkedAsCancelled() bool { return a.cancelled }

// MarkAsCancelled requests the Cancelled path instead of Processing and
// PostProcessing. The request is only accepted until Processing is entered;
// afterwards it fails with ErrCancelWindowClosed and changes nothing.
func (a *Action) MarkAsCancelled() error {
	if a.disposed {
		return actionError(ErrDisposed, a, StageNone)
	}
	if a.lastEntered >= StageProcessing {
		return actionError(ErrCancelWindowClosed, a, a.lastEntered)
	}
	a.cancelled = true
	return nil
}

// Success reports the outcome of the Processing stage. It is false until
// Processing executed, so cancelled actions are never successful, and it
// stays false once a handler failure was recorded in any stage.
func (a *Action) Success() bool { return a.err == nil && IsSuccessful(a.result) }

// Result returns the value produced by the Processing stage, if any.
func (a *Action) Result() Result { return a.result }

// Err returns a handler failure recorded by RecoveryMiddleware.
func (a *Action) Err() error { return a.err }

// fail records err as a handler failure and forces the outcome to unsuccessful.
func (a *Action) fail(err error) {
	a.err = err
	a.result = Status(false)
}

// ChainAction enqueues child on the pending queue of the stage this action
// last entered (PreProcessing when no stage was entered yet).
func (a *Action) ChainAction(child *Action) error {
	stage := a.lastEntered
	if stage < StagePreProcessing {
		stage = StagePreProcessing
	}
	return a.ChainActionAt(child, stage)
}

// ChainActionAt enqueues child on stage's pending queue. The child runs to
// completion before stage is considered finished for this action. Chaining
// into a stage that already finished fails with ErrStagePassed.
func (a *Action) ChainActionAt(child *Action, stage Stage) error {
	if child == nil {
		return ErrNilAction
	}
	if a.disposed {
		return actionError(ErrDisposed, a, stage)
	}
	if child == a {
		return actionError(ErrSelfChain, a, stage)
	}
	if !stage.IsAdvanceable() {
		return actionError(ErrInvalidStage, a, stage)
	}
	if a.HasPassedStage(stage) {
		return actionError(ErrStagePassed, a, stage)
	}
	if err := child.admit(); err != nil {
		return err
	}

	slot := stage.slot()
	a.chains[slot] = append(a.chains[slot], child)
	return nil
}

// PendingChains returns how many chained actions wait on stage.
func (a *Action) PendingChains(stage Stage) int {
	if !stage.IsAdvanceable() {
		return 0
	}
	return len(a.chains[stage.slot()])
}

// tryDequeueChain pops the next chained action waiting on stage.
func (a *Action) tryDequeueChain(stage Stage) (*Action, bool) {
	slot := stage.slot()
	if slot < 0 || len(a.chains[slot]) == 0 {
		return nil, false
	}
	next := a.chains[slot][0]
	a.chains[slot][0] = nil
	a.chains[slot] = a.chains[slot][1:]
	return next, true
}

// tryExecute runs the stage handler at most once, through wrap when given.
// It reports whether the handler was claimed by this call.
func (a *Action) tryExecute(ctx context.Context, stage Stage, wrap func(StageHandlerFunc) StageHandlerFunc) bool {
	slot := stage.slot()
	if a.disposed || slot < 0 || stage <= a.lastExecuted {
		return false
	}

	h := a.handlers[slot]
	a.handlers[slot] = nil
	a.lastExecuted = stage

	var run StageHandlerFunc = func(ctx context.Context, act *Action, st Stage) {
		if h != nil {
			h(ctx, act)
		}
		if st == StageProcessing && act.result == nil {
			act.result = Status(true)
		}
	}
	if wrap != nil {
		run = wrap(run)
	}
	run(ctx, a, stage)
	return true
}

// attach points the chain references at the run's context.
func (a *Action) attach(c *ChainContext) {
	a.chain = c
}

// dispose clears every queue, handler, tag and data entry. Chained actions
// that never got to run are disposed along with their parent. The outcome
// (Success, Result, Err) survives.
func (a *Action) dispose() {
	if a.disposed {
		return
	}
	a.disposed = true

	for slot := range a.chains {
		for _, pending := range a.chains[slot] {
			pending.dispose()
		}
		a.chains[slot] = nil
	}
	for slot := range a.handlers {
		a.handlers[slot] = nil
	}

	a.tags.Clear()
	a.data.Clear()
	a.chain = nil

	a.currentStage = StageDisposed
	a.lastEntered = StageDisposed
	a.lastFinished = StageDisposed
}
