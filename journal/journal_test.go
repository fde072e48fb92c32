package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidroman0O/actionchain"
)

func openTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	j, err := Open(context.Background(), ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRecordsRun(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	p := actionchain.NewProcessor(actionchain.WithObserver(j))

	child := actionchain.NewAction("child")
	root := actionchain.NewAction("root", actionchain.WithMainHandler(func(_ context.Context, a *actionchain.Action) {
		_ = a.ChainAction(child)
	}))
	require.NoError(t, p.EnqueueAction(ctx, root))
	require.NoError(t, j.Err())

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "root", runs[0].RootName)
	assert.Equal(t, root.ID(), runs[0].RootID)
	assert.True(t, runs[0].Finished)
	assert.True(t, runs[0].Success)
	assert.False(t, runs[0].FinishedAt.Before(runs[0].StartedAt))

	entries, err := j.Events(ctx, runs[0].RunID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "root-set", entries[0].Kind)
	assert.Equal(t, "root-cleared", entries[len(entries)-1].Kind)

	var childStarted *Entry
	for i := range entries {
		if entries[i].Kind == "started" && entries[i].ActionName == "child" {
			childStarted = &entries[i]
		}
	}
	require.NotNil(t, childStarted)
	assert.Equal(t, root.ID(), childStarted.ParentID)
	assert.Equal(t, 2, childStarted.Depth)

	// The enqueued event happens before the run exists
	all, err := j.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "enqueued", all[0].Kind)
	assert.Empty(t, all[0].RunID)
	assert.Len(t, all, len(entries)+1)
}

func TestJournalStageEntries(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, WithKinds(actionchain.EventStageExecuted))
	p := actionchain.NewProcessor(actionchain.WithObserver(j))

	a := actionchain.NewAction("staged", actionchain.WithPreHandler(func(_ context.Context, a *actionchain.Action) {
		_ = a.MarkAsCancelled()
	}))
	require.NoError(t, p.EnqueueAction(ctx, a))

	entries, err := j.EventsForAction(ctx, a.ID())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "pre-processing", entries[0].Stage)
	assert.Equal(t, "cancelled", entries[1].Stage)

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1, "run summaries are kept regardless of kinds")
	assert.False(t, runs[0].Success)
}

func TestJournalCountByKind(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	p := actionchain.NewProcessor(actionchain.WithObserver(j))

	require.NoError(t, p.EnqueueAction(ctx, actionchain.NewAction("one")))
	require.NoError(t, p.EnqueueAction(ctx, actionchain.NewAction("two")))

	counts, err := j.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["enqueued"])
	assert.Equal(t, 2, counts["root-set"])
	assert.Equal(t, 6, counts["stage-executed"])
	assert.Equal(t, 2, counts["root-cleared"])

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "one", runs[0].RootName)
	assert.Equal(t, "two", runs[1].RootName)
}

func TestJournalPersistsToFile(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(ctx, dsn)
	require.NoError(t, err)
	p := actionchain.NewProcessor(actionchain.WithObserver(j))
	require.NoError(t, p.EnqueueAction(ctx, actionchain.NewAction("persisted")))
	require.NoError(t, j.Close())

	reopened, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "persisted", runs[0].RootName)
}

type errorLogger struct {
	actionchain.DefaultLogger
	errors int
}

func (l *errorLogger) Error(string, ...interface{}) { l.errors++ }

func TestJournalReportsWriteFailures(t *testing.T) {
	logger := &errorLogger{}
	j, err := Open(context.Background(), ":memory:", WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	p := actionchain.NewProcessor(actionchain.WithObserver(j))
	require.NoError(t, p.EnqueueAction(context.Background(), actionchain.NewAction("lost")))

	require.Error(t, j.Err())
	assert.Contains(t, j.Err().Error(), "journal")
	assert.Greater(t, logger.errors, 0)
}
