// Package metrics exports processor lifecycle events as Prometheus metrics.
//
//	obs, err := metrics.NewObserver(prometheus.DefaultRegisterer, "actionchain")
//	p := actionchain.NewProcessor(actionchain.WithObserver(obs))
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sasha-s/go-deadlock"

	"github.com/davidroman0O/actionchain"
)

// Outcome label values of the finished counter.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Observer records lifecycle events into Prometheus collectors.
type Observer struct {
	actionchain.BaseObserver

	enqueued       prometheus.Counter
	started        *prometheus.CounterVec
	finished       *prometheus.CounterVec
	stages         *prometheus.CounterVec
	runs           prometheus.Counter
	depth          prometheus.Gauge
	actionDuration prometheus.Histogram
	runDuration    prometheus.Histogram
	stageDuration  *prometheus.HistogramVec

	mu        deadlock.Mutex
	startedAt map[uint64]time.Time
	runStart  map[string]time.Time
	now       func() time.Time
}

// NewObserver creates the collectors under namespace and registers them on reg.
func NewObserver(reg prometheus.Registerer, namespace string) (*Observer, error) {
	o := &Observer{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_enqueued_total",
			Help:      "Actions admitted to the root queue.",
		}),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_started_total",
			Help:      "Actions pushed on the execution stack, by role.",
		}, []string{"role"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_finished_total",
			Help:      "Actions that exhausted their stages, by outcome.",
		}, []string{"outcome"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Stage handler executions, by stage.",
		}, []string{"stage"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Processing runs started.",
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stack_depth",
			Help:      "Execution stack depth after the latest event.",
		}),
		actionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Time from an action being started to being finished, chained actions included.",
			Buckets:   prometheus.DefBuckets,
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time from a root being set to its chain context being cleared.",
			Buckets:   prometheus.DefBuckets,
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_handler_duration_seconds",
			Help:      "Stage handler execution time, by stage. Filled by Middleware.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		startedAt: make(map[uint64]time.Time),
		runStart:  make(map[string]time.Time),
		now:       time.Now,
	}

	for _, c := range []prometheus.Collector{
		o.enqueued, o.started, o.finished, o.stages, o.runs, o.depth, o.actionDuration, o.runDuration, o.stageDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ActionEnqueued implements actionchain.Observer.
func (o *Observer) ActionEnqueued(_ context.Context, _ actionchain.Event) {
	o.enqueued.Inc()
}

// ActionStarted implements actionchain.Observer.
func (o *Observer) ActionStarted(_ context.Context, e actionchain.Event) {
	role := "root"
	if e.Parent != nil {
		role = "chained"
	}
	o.started.WithLabelValues(role).Inc()
	o.depth.Set(float64(e.Depth))

	o.mu.Lock()
	o.startedAt[e.Action.ID()] = o.now()
	o.mu.Unlock()
}

// ActionFinished implements actionchain.Observer.
func (o *Observer) ActionFinished(_ context.Context, e actionchain.Event) {
	o.finished.WithLabelValues(Outcome(e.Action)).Inc()
	o.depth.Set(float64(e.Depth))

	o.mu.Lock()
	start, ok := o.startedAt[e.Action.ID()]
	delete(o.startedAt, e.Action.ID())
	o.mu.Unlock()

	if ok {
		o.actionDuration.Observe(o.now().Sub(start).Seconds())
	}
}

// StageExecuted implements actionchain.Observer.
func (o *Observer) StageExecuted(_ context.Context, e actionchain.Event) {
	o.stages.WithLabelValues(e.Stage.String()).Inc()
}

// RootSet implements actionchain.Observer.
func (o *Observer) RootSet(_ context.Context, e actionchain.Event) {
	o.runs.Inc()

	o.mu.Lock()
	o.runStart[e.RunID] = o.now()
	o.mu.Unlock()
}

// RootCleared implements actionchain.Observer.
func (o *Observer) RootCleared(_ context.Context, e actionchain.Event) {
	o.depth.Set(0)

	o.mu.Lock()
	start, ok := o.runStart[e.RunID]
	delete(o.runStart, e.RunID)
	o.mu.Unlock()

	if ok {
		o.runDuration.Observe(o.now().Sub(start).Seconds())
	}
}

// Middleware times every stage handler into the stage duration histogram.
func (o *Observer) Middleware() actionchain.HandlerMiddleware {
	return actionchain.TimingMiddleware(func(_ *actionchain.Action, stage actionchain.Stage, d time.Duration) {
		o.stageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
	})
}

// Outcome classifies a finished action for the outcome label.
func Outcome(a *actionchain.Action) string {
	switch {
	case a.IsMarkedAsCancelled():
		return OutcomeCancelled
	case a.Success():
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}
