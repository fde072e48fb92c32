package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const eventColumns = `seq, run_id, kind, action_id, action_name, stage, parent_id, depth, recorded_at`

// Events returns the entries of one run in recording order.
func (j *Journal) Events(ctx context.Context, runID string) ([]Entry, error) {
	return j.queryEvents(ctx, `SELECT `+eventColumns+` FROM event WHERE run_id = ? ORDER BY seq`, runID)
}

// EventsForAction returns every entry about one action in recording order.
func (j *Journal) EventsForAction(ctx context.Context, actionID uint64) ([]Entry, error) {
	return j.queryEvents(ctx, `SELECT `+eventColumns+` FROM event WHERE action_id = ? ORDER BY seq`, int64(actionID))
}

// All returns every recorded entry in recording order.
func (j *Journal) All(ctx context.Context) ([]Entry, error) {
	return j.queryEvents(ctx, `SELECT `+eventColumns+` FROM event ORDER BY seq`)
}

func (j *Journal) queryEvents(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			runID    sql.NullString
			stage    sql.NullString
			parentID sql.NullInt64
			actionID int64
			at       int64
		)
		if err := rows.Scan(&e.Seq, &runID, &e.Kind, &actionID, &e.ActionName, &stage, &parentID, &e.Depth, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.RunID = runID.String
		e.Stage = stage.String
		e.ActionID = uint64(actionID)
		if parentID.Valid {
			e.ParentID = uint64(parentID.Int64)
		}
		e.RecordedAt = time.Unix(0, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Runs returns every run summary in start order.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, root_id, root_name, started_at, finished_at, success FROM run ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r          Run
			rootID     int64
			startedAt  int64
			finishedAt sql.NullInt64
			success    sql.NullBool
		)
		if err := rows.Scan(&r.RunID, &rootID, &r.RootName, &startedAt, &finishedAt, &success); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.RootID = uint64(rootID)
		r.StartedAt = time.Unix(0, startedAt)
		if finishedAt.Valid {
			r.Finished = true
			r.FinishedAt = time.Unix(0, finishedAt.Int64)
		}
		r.Success = success.Valid && success.Bool
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByKind returns how many entries were recorded per event kind.
func (j *Journal) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM event GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
