package actionchain

import (
	"context"
	"fmt"

	"github.com/sasha-s/go-deadlock"
)

// EventKind identifies a processor lifecycle notification.
type EventKind int

const (
	// EventEnqueued fires when an action is admitted to the root queue.
	EventEnqueued EventKind = iota
	// EventStarted fires when an action is pushed on the execution stack.
	EventStarted
	// EventFinished fires when an action exhausted its stages and is popped.
	EventFinished
	// EventStageExecuted fires after a stage handler ran.
	EventStageExecuted
	// EventPreStageChain fires every time a stage is entered, before its chain is drained.
	EventPreStageChain
	// EventPostStageChain fires once a stage's chain is drained and the stage is finished.
	EventPostStageChain
	// EventRootSet fires when a queued action becomes the root of a new run.
	EventRootSet
	// EventRootCleared fires when the root finished and the chain context was cleared.
	EventRootCleared
)

var eventKindNames = [...]string{
	EventEnqueued:       "enqueued",
	EventStarted:        "started",
	EventFinished:       "finished",
	EventStageExecuted:  "stage-executed",
	EventPreStageChain:  "pre-stage-chain",
	EventPostStageChain: "post-stage-chain",
	EventRootSet:        "root-set",
	EventRootCleared:    "root-cleared",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one lifecycle notification.
type Event struct {
	Kind   EventKind
	Action *Action
	// Stage is set for stage events.
	Stage Stage
	// Parent is the action suspended underneath Action on the stack, nil for roots.
	Parent *Action
	// RunID identifies the processing run, empty for EventEnqueued.
	RunID string
	// Depth is the execution stack depth once the event happened.
	Depth int
}

// EventHandler receives lifecycle notifications. Handlers run synchronously
// on the processing goroutine; they may enqueue actions but must not block.
type EventHandler func(ctx context.Context, e Event)

// Observer receives every lifecycle notification. Embed BaseObserver to
// implement only the methods of interest.
type Observer interface {
	ActionEnqueued(ctx context.Context, e Event)
	ActionStarted(ctx context.Context, e Event)
	ActionFinished(ctx context.Context, e Event)
	StageExecuted(ctx context.Context, e Event)
	PreStageChain(ctx context.Context, e Event)
	PostStageChain(ctx context.Context, e Event)
	RootSet(ctx context.Context, e Event)
	RootCleared(ctx context.Context, e Event)
}

// BaseObserver is a no-op Observer.
type BaseObserver struct{}

func (BaseObserver) ActionEnqueued(context.Context, Event) {}
func (BaseObserver) ActionStarted(context.Context, Event)  {}
func (BaseObserver) ActionFinished(context.Context, Event) {}
func (BaseObserver) StageExecuted(context.Context, Event)  {}
func (BaseObserver) PreStageChain(context.Context, Event)  {}
func (BaseObserver) PostStageChain(context.Context, Event) {}
func (BaseObserver) RootSet(context.Context, Event)        {}
func (BaseObserver) RootCleared(context.Context, Event)    {}

// Subscription removes a registered handler.
type Subscription struct {
	hooks *hooks
	kind  EventKind
	id    uint64
}

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s Subscription) Unsubscribe() {
	if s.hooks != nil {
		s.hooks.remove(s.kind, s.id)
	}
}

type subscriber struct {
	id      uint64
	handler EventHandler
}

// hooks is a multi-subscriber callback list per event kind.
type hooks struct {
	mu     deadlock.RWMutex
	nextID uint64
	subs   map[EventKind][]subscriber
}

func newHooks() *hooks {
	return &hooks{subs: make(map[EventKind][]subscriber)}
}

func (h *hooks) add(kind EventKind, handler EventHandler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.subs[kind] = append(h.subs[kind], subscriber{id: h.nextID, handler: handler})
	return Subscription{hooks: h, kind: kind, id: h.nextID}
}

func (h *hooks) remove(kind EventKind, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[kind]
	for i, s := range subs {
		if s.id == id {
			h.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (h *hooks) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = make(map[EventKind][]subscriber)
}

// emit calls a snapshot of the subscribers so handlers can (un)subscribe while running.
func (h *hooks) emit(ctx context.Context, e Event) {
	h.mu.RLock()
	subs := h.subs[e.Kind]
	h.mu.RUnlock()

	for _, s := range subs {
		s.handler(ctx, e)
	}
}

// Subscribe registers handler for one event kind.
func (p *Processor) Subscribe(kind EventKind, handler EventHandler) Subscription {
	return p.hooks.add(kind, handler)
}

// OnEnqueued registers a handler for EventEnqueued.
func (p *Processor) OnEnqueued(handler EventHandler) Subscription {
	return p.Subscribe(EventEnqueued, handler)
}

// OnStarted registers a handler for EventStarted.
func (p *Processor) OnStarted(handler EventHandler) Subscription {
	return p.Subscribe(EventStarted, handler)
}

// OnFinished registers a handler for EventFinished.
func (p *Processor) OnFinished(handler EventHandler) Subscription {
	return p.Subscribe(EventFinished, handler)
}

// OnStageExecuted registers a handler for EventStageExecuted.
func (p *Processor) OnStageExecuted(handler EventHandler) Subscription {
	return p.Subscribe(EventStageExecuted, handler)
}

// OnPreStageChain registers a handler for EventPreStageChain.
func (p *Processor) OnPreStageChain(handler EventHandler) Subscription {
	return p.Subscribe(EventPreStageChain, handler)
}

// OnPostStageChain registers a handler for EventPostStageChain.
func (p *Processor) OnPostStageChain(handler EventHandler) Subscription {
	return p.Subscribe(EventPostStageChain, handler)
}

// OnRootSet registers a handler for EventRootSet.
func (p *Processor) OnRootSet(handler EventHandler) Subscription {
	return p.Subscribe(EventRootSet, handler)
}

// OnRootCleared registers a handler for EventRootCleared.
func (p *Processor) OnRootCleared(handler EventHandler) Subscription {
	return p.Subscribe(EventRootCleared, handler)
}

// Observe subscribes every method of o and returns the subscriptions.
func (p *Processor) Observe(o Observer) []Subscription {
	return []Subscription{
		p.OnEnqueued(o.ActionEnqueued),
		p.OnStarted(o.ActionStarted),
		p.OnFinished(o.ActionFinished),
		p.OnStageExecuted(o.StageExecuted),
		p.OnPreStageChain(o.PreStageChain),
		p.OnPostStageChain(o.PostStageChain),
		p.OnRootSet(o.RootSet),
		p.OnRootCleared(o.RootCleared),
	}
}
