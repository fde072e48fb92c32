// Package tracing turns processor lifecycle events into OpenTelemetry spans
// and metrics.
//
// Every processing run gets a "actionchain.run" span; every action gets a
// span parented to the action that chained it, or to the run span for roots.
// Stage executions are recorded as span events. Middleware adds one span per
// stage handler and hands its context to the handler, so handlers can start
// their own child spans.
package tracing

import (
	"context"
	"fmt"

	"github.com/sasha-s/go-deadlock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidroman0O/actionchain"
)

// ScopeName is the instrumentation scope of tracers and meters.
const ScopeName = "github.com/davidroman0O/actionchain"

// Attribute keys set on spans and metric data points.
var (
	AttrRunID      = attribute.Key("actionchain.run.id")
	AttrActionID   = attribute.Key("actionchain.action.id")
	AttrActionName = attribute.Key("actionchain.action.name")
	AttrStage      = attribute.Key("actionchain.stage")
	AttrDepth      = attribute.Key("actionchain.depth")
	AttrChained    = attribute.Key("actionchain.chained")
	AttrOutcome    = attribute.Key("actionchain.outcome")
)

// Observer records lifecycle events as spans and metric data points.
type Observer struct {
	actionchain.BaseObserver

	tracer trace.Tracer

	stageTotal    metric.Int64Counter
	finishedTotal metric.Int64Counter
	chainedTotal  metric.Int64Counter
	runTotal      metric.Int64Counter

	mu      deadlock.Mutex
	runs    map[string]trace.Span
	actions map[uint64]trace.Span
}

// NewObserver creates an observer using the given providers.
func NewObserver(tp trace.TracerProvider, mp metric.MeterProvider) (*Observer, error) {
	meter := mp.Meter(ScopeName)

	stageTotal, err := meter.Int64Counter(
		"actionchain.stage.executions",
		metric.WithDescription("Stage handler executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating actionchain.stage.executions: %w", err)
	}

	finishedTotal, err := meter.Int64Counter(
		"actionchain.actions.finished",
		metric.WithDescription("Actions that exhausted their stages"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating actionchain.actions.finished: %w", err)
	}

	chainedTotal, err := meter.Int64Counter(
		"actionchain.actions.chained",
		metric.WithDescription("Chained actions pushed on the execution stack"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating actionchain.actions.chained: %w", err)
	}

	runTotal, err := meter.Int64Counter(
		"actionchain.runs",
		metric.WithDescription("Processing runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating actionchain.runs: %w", err)
	}

	return &Observer{
		tracer:        tp.Tracer(ScopeName),
		stageTotal:    stageTotal,
		finishedTotal: finishedTotal,
		chainedTotal:  chainedTotal,
		runTotal:      runTotal,
		runs:          make(map[string]trace.Span),
		actions:       make(map[uint64]trace.Span),
	}, nil
}

// RootSet implements actionchain.Observer.
func (o *Observer) RootSet(ctx context.Context, e actionchain.Event) {
	_, span := o.tracer.Start(ctx, "actionchain.run",
		trace.WithAttributes(AttrRunID.String(e.RunID), AttrActionName.String(e.Action.Name())),
	)
	o.runTotal.Add(ctx, 1)

	o.mu.Lock()
	o.runs[e.RunID] = span
	o.mu.Unlock()
}

// ActionStarted implements actionchain.Observer.
func (o *Observer) ActionStarted(ctx context.Context, e actionchain.Event) {
	o.mu.Lock()
	parent, ok := o.runs[e.RunID]
	if e.Parent != nil {
		if s, found := o.actions[e.Parent.ID()]; found {
			parent, ok = s, true
		}
	}
	o.mu.Unlock()

	if ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}
	_, span := o.tracer.Start(ctx, "action "+e.Action.Name(),
		trace.WithAttributes(
			AttrRunID.String(e.RunID),
			AttrActionID.Int64(int64(e.Action.ID())),
			AttrActionName.String(e.Action.Name()),
			AttrDepth.Int(e.Depth),
			AttrChained.Bool(e.Parent != nil),
		),
	)
	if e.Parent != nil {
		o.chainedTotal.Add(ctx, 1)
	}

	o.mu.Lock()
	o.actions[e.Action.ID()] = span
	o.mu.Unlock()
}

// StageExecuted implements actionchain.Observer.
func (o *Observer) StageExecuted(ctx context.Context, e actionchain.Event) {
	o.stageTotal.Add(ctx, 1, metric.WithAttributes(AttrStage.String(e.Stage.String())))
	if span := o.actionSpan(e.Action); span != nil {
		span.AddEvent("stage.executed", trace.WithAttributes(AttrStage.String(e.Stage.String())))
	}
}

// PostStageChain implements actionchain.Observer.
func (o *Observer) PostStageChain(_ context.Context, e actionchain.Event) {
	if span := o.actionSpan(e.Action); span != nil {
		span.AddEvent("stage.finished", trace.WithAttributes(AttrStage.String(e.Stage.String())))
	}
}

// ActionFinished implements actionchain.Observer.
func (o *Observer) ActionFinished(ctx context.Context, e actionchain.Event) {
	outcome := outcomeOf(e.Action)
	o.finishedTotal.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))

	o.mu.Lock()
	span, ok := o.actions[e.Action.ID()]
	delete(o.actions, e.Action.ID())
	o.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(AttrOutcome.String(outcome))
	if err := e.Action.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RootCleared implements actionchain.Observer.
func (o *Observer) RootCleared(_ context.Context, e actionchain.Event) {
	o.mu.Lock()
	span, ok := o.runs[e.RunID]
	delete(o.runs, e.RunID)
	o.mu.Unlock()

	if ok {
		span.End()
	}
}

// Middleware wraps every stage handler in its own span, child of the action
// span, and passes the span's context to the handler.
func (o *Observer) Middleware() actionchain.HandlerMiddleware {
	return func(next actionchain.StageHandlerFunc) actionchain.StageHandlerFunc {
		return func(ctx context.Context, a *actionchain.Action, stage actionchain.Stage) {
			if parent := o.actionSpan(a); parent != nil {
				ctx = trace.ContextWithSpan(ctx, parent)
			}
			ctx, span := o.tracer.Start(ctx, "stage "+stage.String(),
				trace.WithAttributes(AttrActionID.Int64(int64(a.ID())), AttrStage.String(stage.String())),
			)
			defer span.End()

			next(ctx, a, stage)
		}
	}
}

func (o *Observer) actionSpan(a *actionchain.Action) trace.Span {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.actions[a.ID()]
}

func outcomeOf(a *actionchain.Action) string {
	switch {
	case a.IsMarkedAsCancelled():
		return "cancelled"
	case a.Success():
		return "success"
	default:
		return "failure"
	}
}
