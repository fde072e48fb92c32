package actionchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionCreation(t *testing.T) {
	a := NewAction("create", WithTags("alpha", "beta"), WithData("count", 3))
	b := NewAction("other")

	assert.Equal(t, "create", a.Name())
	assert.Greater(t, b.ID(), a.ID(), "identifiers are assigned in construction order")
	assert.Equal(t, []string{"alpha", "beta"}, a.Tags())
	assert.Equal(t, []string{"count"}, a.DataKeys())
	assert.Equal(t, StageNone, a.CurrentStage())
	assert.Equal(t, StageNone, a.LastEnteredChainStage())
	assert.Equal(t, StageNone, a.LastFinishedChainStage())
	assert.False(t, a.IsSealed())
	assert.False(t, a.Success())
	assert.Nil(t, a.ChainContext())
	assert.Contains(t, a.String(), "create#")
}

func TestActionSealing(t *testing.T) {
	a := NewAction("seal")

	require.NoError(t, a.SetName("renamed"))
	require.NoError(t, a.SetMainHandler(func(context.Context, *Action) {}))
	require.NoError(t, a.Seal())
	assert.True(t, a.IsSealed())

	// Everything construction-related is frozen now
	assert.ErrorIs(t, a.Seal(), ErrSealed)
	assert.ErrorIs(t, a.SetName("again"), ErrSealed)
	assert.ErrorIs(t, a.SetPreHandler(nil), ErrSealed)
	assert.ErrorIs(t, a.SetMainHandler(nil), ErrSealed)
	assert.ErrorIs(t, a.SetPostHandler(nil), ErrSealed)
	assert.ErrorIs(t, a.SetCancelHandler(nil), ErrSealed)
	assert.Equal(t, "renamed", a.Name())

	// Tags and data stay available
	assert.NoError(t, a.SetTag("still-open", false))
	assert.NoError(t, a.SetData("k", "v", false))
}

func TestChainActionValidation(t *testing.T) {
	parent := NewAction("parent")

	assert.ErrorIs(t, parent.ChainAction(nil), ErrNilAction)
	assert.ErrorIs(t, parent.ChainAction(parent), ErrSelfChain)
	assert.ErrorIs(t, parent.ChainActionAt(NewAction("c"), StageChaining), ErrInvalidStage)
	assert.ErrorIs(t, parent.ChainActionAt(NewAction("c"), StageDisposed), ErrInvalidStage)

	child := NewAction("child")
	require.NoError(t, parent.ChainAction(child))
	assert.True(t, child.IsSealed(), "chaining seals the child")
	assert.True(t, child.IsAdmitted())
	assert.Equal(t, 1, parent.PendingChains(StagePreProcessing), "defaults to pre-processing before any stage")

	// A child takes part in a single run
	other := NewAction("other")
	assert.ErrorIs(t, other.ChainAction(child), ErrAlreadyAdmitted)

	require.NoError(t, parent.ChainActionAt(NewAction("late"), StagePostProcessing))
	assert.Equal(t, 1, parent.PendingChains(StagePostProcessing))
	assert.Equal(t, 0, parent.PendingChains(StageChaining))
}

func TestChainActionIntoPassedStage(t *testing.T) {
	var lateErr error
	var lateChild *Action
	root := NewAction("root",
		WithMainHandler(func(_ context.Context, a *Action) {
			lateChild = NewAction("late")
			lateErr = a.ChainActionAt(lateChild, StagePreProcessing)
		}),
	)

	p := NewProcessor()
	require.NoError(t, p.EnqueueAction(context.Background(), root))

	require.Error(t, lateErr)
	assert.ErrorIs(t, lateErr, ErrStagePassed)
	assert.Contains(t, lateErr.Error(), "root#")
	assert.Contains(t, lateErr.Error(), "pre-processing")
	assert.False(t, lateChild.IsAdmitted(), "a rejected child stays free")
}

func TestMarkAsCancelledWindow(t *testing.T) {
	t.Run("open during pre-processing", func(t *testing.T) {
		var markErr error
		a := NewAction("cancel-in-pre", WithPreHandler(func(_ context.Context, a *Action) {
			markErr = a.MarkAsCancelled()
		}))

		p := NewProcessor()
		require.NoError(t, p.EnqueueAction(context.Background(), a))

		assert.NoError(t, markErr)
		assert.True(t, a.IsMarkedAsCancelled())
	})

	t.Run("closed once processing began", func(t *testing.T) {
		var markErr error
		a := NewAction("cancel-in-main", WithMainHandler(func(_ context.Context, a *Action) {
			markErr = a.MarkAsCancelled()
		}))

		p := NewProcessor()
		require.NoError(t, p.EnqueueAction(context.Background(), a))

		assert.ErrorIs(t, markErr, ErrCancelWindowClosed)
		assert.False(t, a.IsMarkedAsCancelled())
		assert.True(t, a.Success())
	})

	t.Run("before admission", func(t *testing.T) {
		a := NewAction("cancel-early")
		require.NoError(t, a.MarkAsCancelled())
		assert.True(t, a.IsMarkedAsCancelled())
	})
}

func TestHandlersExecuteExactlyOnce(t *testing.T) {
	counts := map[Stage]int{}
	root := NewAction("root",
		WithPreHandler(func(_ context.Context, a *Action) {
			counts[StagePreProcessing]++
			// Two children on pre-processing force it to be re-entered twice
			_ = a.ChainAction(NewAction("c1"))
			_ = a.ChainAction(NewAction("c2"))
		}),
		WithMainHandler(func(_ context.Context, a *Action) {
			counts[StageProcessing]++
			_ = a.ChainAction(NewAction("c3"))
		}),
		WithPostHandler(func(_ context.Context, a *Action) {
			counts[StagePostProcessing]++
			_ = a.ChainAction(NewAction("c4"))
		}),
	)

	p := NewProcessor()
	rec := newEventRecorder(EventStageExecuted)
	rec.attach(p)
	require.NoError(t, p.EnqueueAction(context.Background(), root))

	assert.Equal(t, 1, counts[StagePreProcessing])
	assert.Equal(t, 1, counts[StageProcessing])
	assert.Equal(t, 1, counts[StagePostProcessing])

	rootExecuted := 0
	for _, e := range rec.raw {
		if e.Action == root {
			rootExecuted++
		}
	}
	assert.Equal(t, 3, rootExecuted)
}

func TestHighWaterMarksAreMonotonic(t *testing.T) {
	type marks struct{ entered, finished Stage }
	var seen []marks
	root := NewAction("root",
		WithPreHandler(func(_ context.Context, a *Action) {
			_ = a.ChainAction(NewAction("child"))
		}),
	)

	p := NewProcessor()
	observe := func(_ context.Context, e Event) {
		if e.Action == root && !root.IsDisposed() {
			seen = append(seen, marks{root.LastEnteredChainStage(), root.LastFinishedChainStage()})
		}
	}
	p.OnPreStageChain(observe)
	p.OnPostStageChain(observe)
	p.OnStageExecuted(observe)
	require.NoError(t, p.EnqueueAction(context.Background(), root))

	require.NotEmpty(t, seen)
	for i, m := range seen {
		assert.LessOrEqual(t, m.finished, m.entered, "finished never exceeds entered")
		if i > 0 {
			assert.GreaterOrEqual(t, m.entered, seen[i-1].entered)
			assert.GreaterOrEqual(t, m.finished, seen[i-1].finished)
		}
	}
}

func TestDisposalIsFinal(t *testing.T) {
	var pending *Action
	root := NewAction("root",
		WithTags("own"),
		WithData("key", "value"),
		WithMainHandler(func(_ context.Context, a *Action) {
			// Pending on a stage that will never run for this action
			pending = NewAction("never-runs")
			_ = a.ChainActionAt(pending, StageCancelled)
		}),
	)

	p := NewProcessor()
	require.NoError(t, p.EnqueueAction(context.Background(), root))

	assert.True(t, root.IsDisposed())
	assert.Equal(t, StageDisposed, root.CurrentStage())
	assert.Equal(t, StageDisposed, root.LastEnteredChainStage())
	assert.Equal(t, StageDisposed, root.LastFinishedChainStage())
	assert.Empty(t, root.Tags())
	assert.Empty(t, root.DataKeys())
	assert.Nil(t, root.ChainContext())
	assert.Equal(t, 0, root.PendingChains(StageCancelled))
	assert.True(t, root.Success(), "the outcome survives disposal")

	require.NotNil(t, pending)
	assert.True(t, pending.IsDisposed(), "pending children are disposed with their parent")

	assert.ErrorIs(t, root.SetTag("x", false), ErrDisposed)
	assert.ErrorIs(t, root.SetData("x", 1, false), ErrDisposed)
	assert.ErrorIs(t, root.ChainAction(NewAction("x")), ErrDisposed)
	assert.ErrorIs(t, root.MarkAsCancelled(), ErrDisposed)
	assert.ErrorIs(t, root.SetName("x"), ErrDisposed)
	_, err := root.RemoveTag("own", false)
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = root.RemoveData("key", false)
	assert.ErrorIs(t, err, ErrDisposed)

	// Disposed actions cannot be admitted again
	assert.ErrorIs(t, p.EnqueueAction(context.Background(), root), ErrDisposed)
}

func TestUntypedSuccess(t *testing.T) {
	p := NewProcessor()

	// Processing with no handler still counts as executed
	bare := NewAction("bare")
	ok, err := p.Process(context.Background(), bare)
	require.NoError(t, err)
	assert.True(t, ok)

	cancelled := NewAction("cancelled")
	require.NoError(t, cancelled.MarkAsCancelled())
	ok, err = p.Process(context.Background(), cancelled)
	require.NoError(t, err)
	assert.False(t, ok, "cancelled actions never succeed")
	assert.Nil(t, cancelled.Result())
}
