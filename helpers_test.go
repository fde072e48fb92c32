package actionchain

import (
	"context"
	"fmt"
	"testing"
)

// eventRecorder collects lifecycle events as short strings such as
// "started(R)" or "executed(processing,R)".
type eventRecorder struct {
	kinds  map[EventKind]bool
	events []string
	raw    []Event
}

// newEventRecorder records the given kinds, every kind when none is given.
func newEventRecorder(kinds ...EventKind) *eventRecorder {
	r := &eventRecorder{kinds: map[EventKind]bool{}}
	if len(kinds) == 0 {
		for k := EventEnqueued; k <= EventRootCleared; k++ {
			r.kinds[k] = true
		}
	}
	for _, k := range kinds {
		r.kinds[k] = true
	}
	return r
}

func (r *eventRecorder) attach(p *Processor) {
	for k := range r.kinds {
		p.Subscribe(k, r.record)
	}
}

func (r *eventRecorder) record(_ context.Context, e Event) {
	r.raw = append(r.raw, e)
	switch e.Kind {
	case EventStageExecuted:
		r.events = append(r.events, fmt.Sprintf("executed(%s,%s)", e.Stage, e.Action.Name()))
	case EventPreStageChain:
		r.events = append(r.events, fmt.Sprintf("pre-chain(%s,%s)", e.Stage, e.Action.Name()))
	case EventPostStageChain:
		r.events = append(r.events, fmt.Sprintf("post-chain(%s,%s)", e.Stage, e.Action.Name()))
	default:
		r.events = append(r.events, fmt.Sprintf("%s(%s)", e.Kind, e.Action.Name()))
	}
}

// TestLogger forwards processor logs to the test output.
type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Debug(format string, args ...interface{}) {
	l.t.Logf("[DEBUG] "+format, args...)
}

func (l *TestLogger) Info(format string, args ...interface{}) {
	l.t.Logf("[INFO] "+format, args...)
}

func (l *TestLogger) Warn(format string, args ...interface{}) {
	l.t.Logf("[WARN] "+format, args...)
}

func (l *TestLogger) Error(format string, args ...interface{}) {
	l.t.Logf("[ERROR] "+format, args...)
}

// countingLogger counts messages per level.
type countingLogger struct {
	debug, info, warn, err int
	last                   string
}

func (l *countingLogger) Debug(format string, args ...interface{}) {
	l.debug++
	l.last = fmt.Sprintf(format, args...)
}

func (l *countingLogger) Info(format string, args ...interface{}) {
	l.info++
	l.last = fmt.Sprintf(format, args...)
}

func (l *countingLogger) Warn(format string, args ...interface{}) {
	l.warn++
	l.last = fmt.Sprintf(format, args...)
}

func (l *countingLogger) Error(format string, args ...interface{}) {
	l.err++
	l.last = fmt.Sprintf(format, args...)
}
