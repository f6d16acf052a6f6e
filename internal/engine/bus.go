package engine

import (
	"context"
	"sync"

	"github.com/petrijr/stepflow/pkg/api"
)

// bus is the typed publish/subscribe hub. Dispatch is synchronous, in
// subscription order, over a snapshot of the listener list: removing a
// listener during dispatch does not affect delivery for the pass already
// under way, and a listener added during dispatch is not invoked until
// the next emit.
type bus struct {
	mu        sync.Mutex
	seq       uint64
	listeners map[api.EventType][]*subscription
}

type subscription struct {
	id uint64
	fn api.Listener
}

func newBus() *bus {
	return &bus{
		listeners: make(map[api.EventType][]*subscription),
	}
}

// Subscribe registers fn for t and returns an unsubscribe function.
// Unsubscribing twice is harmless.
func (b *bus) Subscribe(t api.EventType, fn api.Listener) func() {
	b.mu.Lock()
	b.seq++
	sub := &subscription{id: b.seq, fn: fn}
	b.listeners[t] = append(b.listeners[t], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.listeners[t]
		for i, s := range subs {
			if s.id == sub.id {
				b.listeners[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers ev to all listeners subscribed at the start of the call.
// Listeners receive a context marked as engine originated, so engine
// calls they make with it are queued instead of waited on. Re-entrancy
// is therefore detected per call origin; callers on other goroutines
// are unaffected by a dispatch in flight.
func (b *bus) Emit(ev *api.Event) {
	b.mu.Lock()
	subs := b.listeners[ev.Type]
	snapshot := make([]*subscription, len(subs))
	copy(snapshot, subs)
	b.mu.Unlock()

	ctx := markEngineOp(context.Background())
	for _, s := range snapshot {
		s.fn(ctx, ev)
	}
}
