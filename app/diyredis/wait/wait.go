// Package wait implements the per-key condition notifiers that BLPOP and
// XREAD BLOCK suspend on. It holds no data of its own — callers re-check the
// keyspace themselves on wake — it only coordinates who gets woken, and
// when.
package wait

import "sync"

// Waiter is a single-shot wake channel, optionally shared across several
// stream keys (a multi-stream XREAD BLOCK registers the same Waiter under
// every key it watches, so a push to any one of them wakes it).
type Waiter struct {
	ch chan struct{}
}

// NewWaiter returns a fresh, unfired Waiter.
func NewWaiter() *Waiter {
	return &Waiter{ch: make(chan struct{}, 1)}
}

// C returns the channel that receives a value when the waiter is signaled.
// It is safe to select on repeatedly; at most one value is ever buffered so
// repeated signals before a receive do not block the signaler.
func (w *Waiter) C() <-chan struct{} { return w.ch }

func (w *Waiter) signal() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Registry holds the FIFO list waiters (BLPOP) and the broadcast stream
// waiters (XREAD BLOCK) per key.
type Registry struct {
	mu      sync.Mutex
	list    map[string][]*Waiter
	streams map[string][]*Waiter
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		list:    make(map[string][]*Waiter),
		streams: make(map[string][]*Waiter),
	}
}

// RegisterList appends w to the FIFO tail of key's BLPOP waiters.
func (r *Registry) RegisterList(key string, w *Waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list[key] = append(r.list[key], w)
}

// RemoveList removes w from key's BLPOP waiter list, if present. Safe to
// call even if w already fired or was never registered (idempotent
// cleanup on cancellation/timeout).
func (r *Registry) RemoveList(key string, w *Waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list[key] = removeWaiter(r.list[key], w)
	if len(r.list[key]) == 0 {
		delete(r.list, key)
	}
}

// SignalList wakes the single head (oldest) waiter on key, if any, handing
// it exclusive first refusal on the newly available element. Call once per
// pushed value so N pushed values can wake up to N waiters.
func (r *Registry) SignalList(key string) {
	r.mu.Lock()
	waiters := r.list[key]
	if len(waiters) == 0 {
		r.mu.Unlock()
		return
	}
	head := waiters[0]
	r.list[key] = waiters[1:]
	if len(r.list[key]) == 0 {
		delete(r.list, key)
	}
	r.mu.Unlock()

	head.signal()
}

// RegisterStream attaches w to key's broadcast stream waiter set.
func (r *Registry) RegisterStream(key string, w *Waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[key] = append(r.streams[key], w)
}

// RemoveStream detaches w from key's broadcast stream waiter set.
func (r *Registry) RemoveStream(key string, w *Waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[key] = removeWaiter(r.streams[key], w)
	if len(r.streams[key]) == 0 {
		delete(r.streams, key)
	}
}

// SignalStream wakes every waiter currently registered on key. Each waiter
// re-evaluates its own read cursor on wake, so broadcast (rather than FIFO
// handoff) is correct here: an XADD may satisfy several different XREAD
// BLOCK calls watching the same key at once.
func (r *Registry) SignalStream(key string) {
	r.mu.Lock()
	waiters := append([]*Waiter(nil), r.streams[key]...)
	r.mu.Unlock()

	for _, w := range waiters {
		w.signal()
	}
}

func removeWaiter(waiters []*Waiter, target *Waiter) []*Waiter {
	for i, w := range waiters {
		if w == target {
			return append(waiters[:i], waiters[i+1:]...)
		}
	}
	return waiters
}
