package actionchain

import (
	"errors"
	"fmt"
)

// Protocol violations. They indicate a caller bug and are reported at the
// call site; the engine never retries them.
var (
	ErrNilAction          = errors.New("actionchain: nil action")
	ErrDisposed           = errors.New("actionchain: action is disposed")
	ErrSealed             = errors.New("actionchain: action is already sealed")
	ErrStagePassed        = errors.New("actionchain: stage has already finished")
	ErrInvalidStage       = errors.New("actionchain: stage cannot hold chained actions")
	ErrSelfChain          = errors.New("actionchain: action cannot chain itself")
	ErrAlreadyAdmitted    = errors.New("actionchain: action was already admitted to a run")
	ErrCancelWindowClosed = errors.New("actionchain: cancellation window has closed")
	ErrNoChainContext     = errors.New("actionchain: action is not attached to a chain context")
	ErrBusy               = errors.New("actionchain: processor is already running")
	ErrClosed             = errors.New("actionchain: processor is closed")
)

// Registry errors.
var (
	ErrAlreadyRegistered = errors.New("actionchain: action name already registered")
	ErrUnknownAction     = errors.New("actionchain: no action registered under name")
)

// actionError decorates a sentinel with the offending action (and stage when relevant).
func actionError(err error, a *Action, stage Stage) error {
	if stage == StageNone {
		return fmt.Errorf("%w: action %s", err, a)
	}
	return fmt.Errorf("%w: action %s, stage %s", err, a, stage)
}
