package actionchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sumParams struct {
	Values []int
}

func sum(_ context.Context, _ *TypedAction[sumParams, Outcome[int]], params sumParams) Outcome[int] {
	total := 0
	for _, v := range params.Values {
		total += v
	}
	return Succeeded(total)
}

func TestTypedActionExecute(t *testing.T) {
	action := NewTypedAction("sum", sum, sumParams{Values: []int{1, 2, 3}})

	result, params, ok, err := action.Execute(context.Background(), NewProcessor())
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Equal(t, 6, result.Value)
	assert.Equal(t, []int{1, 2, 3}, params.Values)

	got, ran := action.Result()
	assert.True(t, ran)
	assert.Equal(t, Succeeded(6), got)
	assert.True(t, action.Action.Success())
	assert.Equal(t, Succeeded(6), action.Action.Result())
}

func TestTypedActionPreRewritesParameters(t *testing.T) {
	var action *TypedAction[sumParams, Outcome[int]]
	action = NewTypedAction("sum", sum, sumParams{Values: []int{1}},
		WithPreHandler(func(context.Context, *Action) {
			require.NoError(t, action.SetParameters(sumParams{Values: []int{10, 20}}))
		}),
	)

	result, params, ok, err := action.Execute(context.Background(), NewProcessor())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30, result.Value)
	assert.Equal(t, []int{10, 20}, params.Values)

	assert.ErrorIs(t, action.SetParameters(sumParams{}), ErrDisposed)
}

func TestTypedActionFailingResultStillRunsPost(t *testing.T) {
	postRan := false
	action := NewTypedAction("divide",
		func(_ context.Context, _ *TypedAction[[2]int, Outcome[int]], p [2]int) Outcome[int] {
			if p[1] == 0 {
				return Failed(0)
			}
			return Succeeded(p[0] / p[1])
		},
		[2]int{4, 0},
		WithPostHandler(func(_ context.Context, a *Action) {
			postRan = true
			assert.False(t, a.Success(), "the outcome is known during post-processing")
		}),
	)

	p := NewProcessor()
	rec := newEventRecorder(EventStageExecuted)
	rec.attach(p)

	result, _, ok, err := action.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.False(t, ok)
	assert.False(t, result.OK)
	assert.True(t, postRan)
	assert.Equal(t, []string{
		"executed(pre-processing,divide)",
		"executed(processing,divide)",
		"executed(post-processing,divide)",
	}, rec.events)
}

func TestTypedActionNilResultIsFailure(t *testing.T) {
	action := NewTypedAction("nil-result",
		func(context.Context, *TypedAction[string, Result], string) Result { return nil },
		"input",
	)

	_, _, ok, err := action.Execute(context.Background(), NewProcessor())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTypedActionCancelled(t *testing.T) {
	mainRan := false
	action := NewTypedAction("cancelled",
		func(context.Context, *TypedAction[int, Status], int) Status {
			mainRan = true
			return true
		},
		1,
		WithPreHandler(func(_ context.Context, a *Action) { _ = a.MarkAsCancelled() }),
	)

	_, _, ok, err := action.Execute(context.Background(), NewProcessor())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mainRan)

	_, ran := action.Result()
	assert.False(t, ran)
}

func TestTypedActionAsChainedChild(t *testing.T) {
	child := NewTypedAction("child", sum, sumParams{Values: []int{2, 2}})
	root := NewAction("root", WithMainHandler(func(_ context.Context, a *Action) {
		require.NoError(t, a.ChainAction(child.Action))
	}))

	_, err := NewProcessor().Process(context.Background(), root)
	require.NoError(t, err)

	result, ran := child.Result()
	assert.True(t, ran)
	assert.Equal(t, 4, result.Value)
}

func TestResultHelpers(t *testing.T) {
	assert.False(t, IsSuccessful(nil))
	assert.True(t, IsSuccessful(Status(true)))
	assert.False(t, IsSuccessful(Status(false)))
	assert.True(t, IsSuccessful(Succeeded("x")))
	assert.False(t, IsSuccessful(Failed("x")))
}

type report struct {
	Passed bool
}

func (r *report) Success() bool { return r.Passed }

func TestTypedActionNilPointerResultIsFailure(t *testing.T) {
	action := NewTypedAction("nil-pointer",
		func(context.Context, *TypedAction[int, *report], int) *report { return nil },
		1,
	)

	result, _, ok, err := action.Execute(context.Background(), NewProcessor())
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.False(t, ok)
	assert.False(t, action.Action.Success())
}

func TestIsSuccessfulWithNilPointer(t *testing.T) {
	var r *report
	assert.False(t, IsSuccessful(r))
	assert.True(t, IsSuccessful(&report{Passed: true}))
}
