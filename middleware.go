package actionchain

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// StageHandlerFunc is the core function type for executing one stage handler.
type StageHandlerFunc func(ctx context.Context, a *Action, stage Stage)

// HandlerMiddleware wraps stage handler execution. It allows performing
// operations before and after a handler runs, or replacing the context it
// receives.
type HandlerMiddleware func(next StageHandlerFunc) StageHandlerFunc

// LoggingMiddleware logs every stage handler execution.
func LoggingMiddleware(logger Logger) HandlerMiddleware {
	return func(next StageHandlerFunc) StageHandlerFunc {
		return func(ctx context.Context, a *Action, stage Stage) {
			logger.Debug("Executing %s handler of %s", stage, a)
			next(ctx, a, stage)
			logger.Debug("Executed %s handler of %s (success=%t)", stage, a, a.Success())
		}
	}
}

// TimingMiddleware reports how long each stage handler took.
func TimingMiddleware(report func(a *Action, stage Stage, d time.Duration)) HandlerMiddleware {
	return func(next StageHandlerFunc) StageHandlerFunc {
		return func(ctx context.Context, a *Action, stage Stage) {
			start := time.Now()
			next(ctx, a, stage)
			report(a, stage, time.Since(start))
		}
	}
}

// RecoveryMiddleware recovers a panicking handler. The panic is logged with
// its stack trace and recorded on the action, which then reports failure.
// The run continues with the action's next stage.
func RecoveryMiddleware(logger Logger) HandlerMiddleware {
	return func(next StageHandlerFunc) StageHandlerFunc {
		return func(ctx context.Context, a *Action, stage Stage) {
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("action %s panicked in %s: %v", a, stage, r)
					logger.Error("%v\n%s", err, debug.Stack())
					a.fail(err)
				}
			}()
			next(ctx, a, stage)
		}
	}
}
