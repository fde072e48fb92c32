package actionchain

import (
	"context"

	"github.com/sasha-s/go-deadlock"
)

// Config holds processor settings that are usually loaded from configuration.
type Config struct {
	// DebugEvents logs every lifecycle event at debug level.
	DebugEvents bool
}

// ProcessorOption is a function that configures a Processor
type ProcessorOption func(*Processor)

// WithLogger sets the logger used by the processor
func WithLogger(logger Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMiddleware adds handler middleware to the processor
func WithMiddleware(middleware ...HandlerMiddleware) ProcessorOption {
	return func(p *Processor) {
		p.middleware = append(p.middleware, middleware...)
	}
}

// WithObserver subscribes an observer to every lifecycle event
func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) {
		p.Observe(o)
	}
}

// WithConfig applies loaded configuration
func WithConfig(cfg Config) ProcessorOption {
	return func(p *Processor) {
		p.config = cfg
	}
}

type queuedAction struct {
	ctx    context.Context
	action *Action
}

// Processor drives actions through their stages.
//
// Roots are admitted from a FIFO queue one at a time. Each root starts a
// processing run with a fresh ChainContext; the run walks an explicit
// execution stack instead of recursing, so chains of any depth never grow
// the call stack. A handler may enqueue more roots at any time: the call
// only appends to the queue and the running loop picks them up once the
// current run is over.
//
// Only one goroutine drives the loop at a time. EnqueueAction may be called
// from any goroutine; everything else is meant for the driving goroutine
// and for handlers.
type Processor struct {
	mu      deadlock.Mutex
	queue   []queuedAction
	running bool
	closed  bool

	stack  []*Action
	root   *Action
	chain  *ChainContext
	runCtx context.Context

	hooks      *hooks
	middleware []HandlerMiddleware
	logger     Logger
	config     Config
}

// NewProcessor creates an idle processor with the given options
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		hooks:      newHooks(),
		middleware: []HandlerMiddleware{},
		logger:     NewDefaultLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.config.DebugEvents {
		p.observeForDebug()
	}

	return p
}

// Use adds middleware to the processor's handler middleware chain.
// Middleware is executed in the order it is added.
func (p *Processor) Use(middleware ...HandlerMiddleware) {
	p.middleware = append(p.middleware, middleware...)
}

// IsProcessing reports whether a run is in progress.
func (p *Processor) IsProcessing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// QueueLen returns the number of roots waiting for admission.
func (p *Processor) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Root returns the root of the current run, nil when idle.
func (p *Processor) Root() *Action { return p.root }

// Depth returns the current execution stack depth.
func (p *Processor) Depth() int { return len(p.stack) }

// EnqueueAction admits a as a root. The action is sealed if needed and
// appended to the FIFO queue. When the processor is idle the call drives
// processing until the queue is drained; otherwise it returns immediately.
func (p *Processor) EnqueueAction(ctx context.Context, a *Action) error {
	if a == nil {
		return ErrNilAction
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if err := p.admitLocked(ctx, a); err != nil {
		p.mu.Unlock()
		return err
	}
	claimed := !p.running
	p.running = true
	p.mu.Unlock()

	p.emit(ctx, Event{Kind: EventEnqueued, Action: a})

	if claimed {
		p.run()
	}
	return nil
}

// Process runs a, and everything it chains, to completion and returns its
// success. The processor must be idle; a call made while a run is in
// progress fails with ErrBusy.
func (p *Processor) Process(ctx context.Context, a *Action) (bool, error) {
	if a == nil {
		return false, ErrNilAction
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return false, ErrBusy
	}
	if err := p.admitLocked(ctx, a); err != nil {
		p.mu.Unlock()
		return false, err
	}
	p.running = true
	p.mu.Unlock()

	p.emit(ctx, Event{Kind: EventEnqueued, Action: a})
	p.run()

	return a.Success(), nil
}

// Close drops and disposes queued roots and removes every subscription.
// A run in progress completes; later admissions fail with ErrClosed.
func (p *Processor) Close() {
	p.mu.Lock()
	p.closed = true
	pending := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, q := range pending {
		q.action.dispose()
	}
	p.hooks.clear()
}

func (p *Processor) admitLocked(ctx context.Context, a *Action) error {
	if p.closed {
		return ErrClosed
	}
	if err := a.admit(); err != nil {
		return err
	}
	p.queue = append(p.queue, queuedAction{ctx: ctx, action: a})
	return nil
}

// run drives processing runs until the queue is empty. The caller must have
// claimed the loop by setting p.running.
func (p *Processor) run() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Processing run aborted by panic: %v", r)
			p.reset()
			panic(r)
		}
	}()

	for p.startNextRun() {
		p.drive()
	}
}

// startNextRun admits the next queued root, or releases the loop when the
// queue is empty. Both happen under the lock so no admission is lost.
func (p *Processor) startNextRun() bool {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.running = false
		p.mu.Unlock()
		return false
	}
	next := p.queue[0]
	p.queue[0] = queuedAction{}
	p.queue = p.queue[1:]
	p.mu.Unlock()

	p.root = next.action
	p.chain = newChainContext(next.action)
	p.runCtx = next.ctx

	p.logger.Debug("Starting run %s with root %s", p.chain.runID, next.action)
	p.emit(p.runCtx, Event{Kind: EventRootSet, Action: next.action})
	p.push(next.action)
	return true
}

// drive advances the execution stack until the current run is complete.
func (p *Processor) drive() {
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		top.attach(p.chain)

		if p.processStage(top, StagePreProcessing) {
			continue
		}

		if top.IsMarkedAsCancelled() {
			if p.processStage(top, StageCancelled) {
				continue
			}
		}

		if p.processStage(top, StageProcessing) {
			continue
		}

		if p.processStage(top, StagePostProcessing) {
			continue
		}

		p.finish(top)
	}
}

// finish pops an action that exhausted its stages.
func (p *Processor) finish(a *Action) {
	p.stack[len(p.stack)-1] = nil
	p.stack = p.stack[:len(p.stack)-1]

	var parent *Action
	if len(p.stack) > 0 {
		parent = p.stack[len(p.stack)-1]
	}
	p.emit(p.runCtx, Event{Kind: EventFinished, Action: a, Parent: parent})
	p.logger.Debug("Finished %s (success=%t)", a, a.Success())

	if a != p.root {
		a.dispose()
		return
	}

	runID := p.chain.runID
	p.chain.clear()
	p.emit(p.runCtx, Event{Kind: EventRootCleared, Action: a, RunID: runID})
	p.logger.Debug("Completed run %s", runID)

	p.root = nil
	p.chain = nil
	a.dispose()
	p.runCtx = nil
}

// push places a on the execution stack, suspending the previous top.
func (p *Processor) push(a *Action) {
	var parent *Action
	if len(p.stack) > 0 {
		parent = p.stack[len(p.stack)-1]
	}
	p.stack = append(p.stack, a)
	a.attach(p.chain)
	p.emit(p.runCtx, Event{Kind: EventStarted, Action: a, Parent: parent})
}

// processStage attempts to advance a through stage. It reports true when a
// chained action was pushed and the loop must process it first.
func (p *Processor) processStage(a *Action, stage Stage) bool {
	if !p.enterStage(a, stage) {
		return false
	}
	if p.continueChain(a, stage) {
		return true
	}
	p.finishStage(a)
	return false
}

// enterStage makes stage current unless it is already current or passed,
// running its handler the first time.
func (p *Processor) enterStage(a *Action, stage Stage) bool {
	if a.currentStage == stage || a.HasPassedStage(stage) {
		return false
	}

	a.currentStage = stage
	a.lastEntered = maxStage(a.lastEntered, stage)

	if a.tryExecute(p.runCtx, stage, p.wrapper()) {
		p.emit(p.runCtx, Event{Kind: EventStageExecuted, Action: a, Stage: stage})
	}

	p.emit(p.runCtx, Event{Kind: EventPreStageChain, Action: a, Stage: stage})
	return true
}

// continueChain pushes the next action chained on stage, if any.
func (p *Processor) continueChain(a *Action, stage Stage) bool {
	next, ok := a.tryDequeueChain(stage)
	if !ok {
		return false
	}
	a.currentStage = StageChaining
	p.logger.Debug("%s suspended at %s for chained %s", a, stage, next)
	p.push(next)
	return true
}

// finishStage marks the last entered stage as drained.
func (p *Processor) finishStage(a *Action) {
	if a.HasPassedStage(a.lastEntered) {
		return
	}
	a.lastFinished = a.lastEntered
	p.emit(p.runCtx, Event{Kind: EventPostStageChain, Action: a, Stage: a.lastFinished})
}

// wrapper composes the middleware chain, applied in reverse so the first
// registered middleware is the outermost.
func (p *Processor) wrapper() func(StageHandlerFunc) StageHandlerFunc {
	if len(p.middleware) == 0 {
		return nil
	}
	return func(h StageHandlerFunc) StageHandlerFunc {
		for i := len(p.middleware) - 1; i >= 0; i-- {
			h = p.middleware[i](h)
		}
		return h
	}
}

// emit fills in the run identity and depth, except for EventEnqueued which
// may be raised from a goroutine that does not own the loop.
func (p *Processor) emit(ctx context.Context, e Event) {
	if e.Kind != EventEnqueued {
		if e.RunID == "" && p.chain != nil {
			e.RunID = p.chain.runID
		}
		e.Depth = len(p.stack)
	}
	p.hooks.emit(ctx, e)
}

// reset abandons the current run after a panic escaped a handler. Queued
// roots are kept; the next admission starts a new run.
func (p *Processor) reset() {
	for _, a := range p.stack {
		a.dispose()
	}
	p.stack = nil
	if p.chain != nil {
		p.chain.clear()
	}
	p.chain = nil
	p.root = nil
	p.runCtx = nil

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Processor) observeForDebug() {
	for kind := EventEnqueued; kind <= EventRootCleared; kind++ {
		p.Subscribe(kind, func(_ context.Context, e Event) {
			p.logger.Debug("event=%s action=%s stage=%s run=%s depth=%d", e.Kind, e.Action, e.Stage, e.RunID, e.Depth)
		})
	}
}
