package engine

import (
	"context"
	"sync"
	"time"

	"bloomfeed/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

type subscription struct {
	id   int64
	kind core.ActivityKind
	fn   func(context.Context, core.Activity)
}

// ActivityBus provides thread-safe pub/sub over activity kinds with
// sync and async dispatch.
type ActivityBus struct {
	mode         DispatchMode
	mu           sync.RWMutex
	subs         map[core.ActivityKind]map[int64]subscription
	nextID       int64
	asyncQueue   chan core.Activity
	asyncWorkers int
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewActivityBus(mode DispatchMode) *ActivityBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &ActivityBus{
		mode:         mode,
		subs:         make(map[core.ActivityKind]map[int64]subscription),
		asyncQueue:   make(chan core.Activity, 2048),
		asyncWorkers: 4,
		ctx:          ctx,
		cancel:       cancel,
	}
	if mode == DispatchAsync {
		b.startWorkers()
	}
	return b
}

func (b *ActivityBus) startWorkers() {
	for i := 0; i < b.asyncWorkers; i++ {
		go func() {
			for {
				select {
				case a := <-b.asyncQueue:
					b.dispatchSync(context.Background(), a)
				case <-b.ctx.Done():
					return
				}
			}
		}()
	}
}

// Close stops async workers.
func (b *ActivityBus) Close() {
	b.cancel()
	// allow workers to drain briefly
	time.Sleep(10 * time.Millisecond)
}

// Subscribe registers a handler for an activity kind. Returns an
// unsubscribe func.
func (b *ActivityBus) Subscribe(kind core.ActivityKind, handler func(context.Context, core.Activity)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int64]subscription)
	}
	b.subs[kind][id] = subscription{id: id, kind: kind, fn: handler}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if m := b.subs[kind]; m != nil {
			delete(m, id)
		}
	}
}

// Publish sends an activity to subscribers of its kind.
func (b *ActivityBus) Publish(ctx context.Context, a core.Activity) {
	if b.mode == DispatchAsync {
		select {
		case b.asyncQueue <- a:
		default:
			// Drop if queue full to preserve latency; alternative is blocking
		}
		return
	}
	b.dispatchSync(ctx, a)
}

func (b *ActivityBus) dispatchSync(ctx context.Context, a core.Activity) {
	b.mu.RLock()
	subs := b.subs[a.Kind()]
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Activity), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, a)
	}
}
