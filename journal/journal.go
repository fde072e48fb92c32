// Package journal records processor lifecycle events in SQLite so that runs
// can be inspected after they completed.
//
//	j, err := journal.Open(ctx, "file:journal.db")
//	defer j.Close()
//	p := actionchain.NewProcessor(actionchain.WithObserver(j))
package journal

import (
	"bufio"
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/sasha-s/go-deadlock"
	_ "modernc.org/sqlite"

	"github.com/davidroman0O/actionchain"
)

//go:embed schema.sql
var schema string

// Entry is one recorded lifecycle event.
type Entry struct {
	Seq        int64
	RunID      string
	Kind       string
	ActionID   uint64
	ActionName string
	Stage      string
	ParentID   uint64
	Depth      int
	RecordedAt time.Time
}

// Run summarizes one processing run.
type Run struct {
	RunID      string
	RootID     uint64
	RootName   string
	StartedAt  time.Time
	FinishedAt time.Time
	Finished   bool
	Success    bool
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger reports write failures, which observers cannot return.
func WithLogger(logger actionchain.Logger) Option {
	return func(j *Journal) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithKinds restricts recording to the given event kinds. Run summaries
// are always kept.
func WithKinds(kinds ...actionchain.EventKind) Option {
	return func(j *Journal) {
		j.kinds = make(map[actionchain.EventKind]bool, len(kinds))
		for _, k := range kinds {
			j.kinds[k] = true
		}
	}
}

// Journal is an actionchain.Observer writing to SQLite.
type Journal struct {
	db     *sql.DB
	logger actionchain.Logger
	kinds  map[actionchain.EventKind]bool
	now    func() time.Time

	mu      deadlock.Mutex
	lastErr error
}

// Open opens (and creates when missing) the journal at dsn, for example
// "file:journal.db" or "file::memory:".
func Open(ctx context.Context, dsn string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// A single connection keeps in-memory databases alive and serializes writes.
	db.SetMaxOpenConns(1)

	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &Journal{
		db:     db,
		logger: actionchain.NewDefaultLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	scanner := bufio.NewScanner(strings.NewReader(schema))
	var buf strings.Builder
	flush := func() error {
		stmt := strings.TrimSpace(buf.String())
		if stmt == "" {
			return nil
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema exec failed: %w (sql: %s)", err, stmt)
		}
		buf.Reset()
		return nil
	}
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("schema scan failed: %w", err)
	}
	return flush()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Err returns the last write failure, nil when every write succeeded.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

func (j *Journal) fail(op string, err error) {
	err = fmt.Errorf("journal %s: %w", op, err)
	j.logger.Error("%v", err)

	j.mu.Lock()
	j.lastErr = err
	j.mu.Unlock()
}

func (j *Journal) record(ctx context.Context, e actionchain.Event) {
	if j.kinds != nil && !j.kinds[e.Kind] {
		return
	}

	var stage, runID, parentID any
	if e.Stage != actionchain.StageNone {
		stage = e.Stage.String()
	}
	if e.RunID != "" {
		runID = e.RunID
	}
	if e.Parent != nil {
		parentID = int64(e.Parent.ID())
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO event (run_id, kind, action_id, action_name, stage, parent_id, depth, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, e.Kind.String(), int64(e.Action.ID()), e.Action.Name(), stage, parentID, e.Depth, j.now().UnixNano(),
	)
	if err != nil {
		j.fail("insert event", err)
	}
}

// ActionEnqueued implements actionchain.Observer.
func (j *Journal) ActionEnqueued(ctx context.Context, e actionchain.Event) { j.record(ctx, e) }

// ActionStarted implements actionchain.Observer.
func (j *Journal) ActionStarted(ctx context.Context, e actionchain.Event) { j.record(ctx, e) }

// ActionFinished implements actionchain.Observer. Finishing the root also
// closes its run summary.
func (j *Journal) ActionFinished(ctx context.Context, e actionchain.Event) {
	j.record(ctx, e)
	if e.Parent != nil {
		return
	}
	_, err := j.db.ExecContext(ctx,
		`UPDATE run SET finished_at = ?, success = ? WHERE run_id = ?`,
		j.now().UnixNano(), e.Action.Success(), e.RunID,
	)
	if err != nil {
		j.fail("finish run", err)
	}
}

// StageExecuted implements actionchain.Observer.
func (j *Journal) StageExecuted(ctx context.Context, e actionchain.Event) { j.record(ctx, e) }

// PreStageChain implements actionchain.Observer.
func (j *Journal) PreStageChain(ctx context.Context, e actionchain.Event) { j.record(ctx, e) }

// PostStageChain implements actionchain.Observer.
func (j *Journal) PostStageChain(ctx context.Context, e actionchain.Event) { j.record(ctx, e) }

// RootSet implements actionchain.Observer.
func (j *Journal) RootSet(ctx context.Context, e actionchain.Event) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run (run_id, root_id, root_name, started_at) VALUES (?, ?, ?, ?)`,
		e.RunID, int64(e.Action.ID()), e.Action.Name(), j.now().UnixNano(),
	)
	if err != nil {
		j.fail("insert run", err)
	}
	j.record(ctx, e)
}

// RootCleared implements actionchain.Observer.
func (j *Journal) RootCleared(ctx context.Context, e actionchain.Event) { j.record(ctx, e) }
