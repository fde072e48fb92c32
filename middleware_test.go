package actionchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) HandlerMiddleware {
		return func(next StageHandlerFunc) StageHandlerFunc {
			return func(ctx context.Context, a *Action, stage Stage) {
				order = append(order, name+":before:"+stage.String())
				next(ctx, a, stage)
				order = append(order, name+":after:"+stage.String())
			}
		}
	}

	p := NewProcessor(WithMiddleware(mark("first")))
	p.Use(mark("second"))

	a := NewAction("mw", WithMainHandler(func(context.Context, *Action) {
		order = append(order, "handler")
	}))
	// Only the main stage has a handler but every stage goes through the chain
	require.NoError(t, p.EnqueueAction(context.Background(), a))

	require.Len(t, order, 13)
	assert.Equal(t, []string{
		"first:before:processing",
		"second:before:processing",
		"handler",
		"second:after:processing",
		"first:after:processing",
	}, order[4:9])
}

func TestMiddlewareCanReplaceContext(t *testing.T) {
	type key struct{}
	inject := func(next StageHandlerFunc) StageHandlerFunc {
		return func(ctx context.Context, a *Action, stage Stage) {
			next(context.WithValue(ctx, key{}, stage), a, stage)
		}
	}

	var got any
	a := NewAction("ctx", WithPostHandler(func(ctx context.Context, _ *Action) {
		got = ctx.Value(key{})
	}))

	p := NewProcessor(WithMiddleware(inject))
	require.NoError(t, p.EnqueueAction(context.Background(), a))
	assert.Equal(t, StagePostProcessing, got)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := &countingLogger{}
	p := NewProcessor(WithMiddleware(RecoveryMiddleware(logger)))

	postRan := false
	a := NewAction("explodes",
		WithMainHandler(func(context.Context, *Action) { panic("kaboom") }),
		WithPostHandler(func(context.Context, *Action) { postRan = true }),
	)

	ok, err := p.Process(context.Background(), a)
	require.NoError(t, err)

	assert.False(t, ok)
	require.Error(t, a.Err())
	assert.Contains(t, a.Err().Error(), "kaboom")
	assert.Contains(t, a.Err().Error(), "processing")
	assert.True(t, postRan, "the run continues after a recovered panic")
	assert.Equal(t, 1, logger.err)
	assert.False(t, p.IsProcessing())
}

func TestRecoveryMiddlewareInPreKeepsChainRunning(t *testing.T) {
	p := NewProcessor(WithMiddleware(RecoveryMiddleware(NewDefaultLogger())))

	sibling := NewAction("sibling")
	badMainRan := false
	bad := NewAction("bad",
		WithPreHandler(func(context.Context, *Action) { panic("bad pre") }),
		WithMainHandler(func(context.Context, *Action) { badMainRan = true }),
	)
	root := NewAction("root", WithMainHandler(func(_ context.Context, a *Action) {
		_ = a.ChainAction(bad)
		_ = a.ChainAction(sibling)
	}))

	ok, err := p.Process(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, sibling.Success())

	assert.True(t, badMainRan, "a recovered pre-processing panic does not skip the main stage")
	assert.False(t, bad.Success(), "the recorded failure outlives a clean main stage")
	assert.Error(t, bad.Err())
}

func TestRecoveryMiddlewareInPreFailsTypedAction(t *testing.T) {
	p := NewProcessor(WithMiddleware(RecoveryMiddleware(NewDefaultLogger())))
	action := NewTypedAction("typed-bad",
		func(context.Context, *TypedAction[int, Status], int) Status { return true },
		1,
		WithPreHandler(func(context.Context, *Action) { panic("typed pre") }),
	)

	result, _, ok, err := action.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, bool(result), "the main handler still produced its result")
	assert.False(t, ok)
	assert.False(t, action.Action.Success())
}

func TestLoggingMiddleware(t *testing.T) {
	logger := &countingLogger{}
	p := NewProcessor(WithMiddleware(LoggingMiddleware(logger)))

	require.NoError(t, p.EnqueueAction(context.Background(), NewAction("logged")))

	// Two lines for each of the three executed stages
	assert.Equal(t, 6, logger.debug)
	assert.Contains(t, logger.last, "post-processing")
}

func TestTimingMiddleware(t *testing.T) {
	durations := map[Stage]time.Duration{}
	p := NewProcessor(WithMiddleware(TimingMiddleware(func(_ *Action, stage Stage, d time.Duration) {
		durations[stage] = d
	})))

	a := NewAction("slow", WithMainHandler(func(context.Context, *Action) {
		time.Sleep(5 * time.Millisecond)
	}))
	require.NoError(t, p.EnqueueAction(context.Background(), a))

	assert.Len(t, durations, 3)
	assert.GreaterOrEqual(t, durations[StageProcessing], 5*time.Millisecond)
}
