// Package bfanout is the generic multi-producer / multi-subscriber
// broadcast primitive shared by the bus switch and the Wi-Fi gateway's TCP
// relay: bounded per-subscriber queues, and a full queue never blocks the
// broadcaster: depending on the Policy, the value is dropped for that
// subscriber (PolicyDrop) or the subscriber is evicted (PolicyKick).
package bfanout

import "sync"

// Policy selects what happens to a subscriber whose queue is full at
// broadcast time.
type Policy int

const (
	// PolicyDrop silently discards the message for that subscriber only.
	PolicyDrop Policy = iota
	// PolicyKick closes the subscriber so its owner notices and
	// deregisters.
	PolicyKick
)

// Subscriber is one registered listener: a bounded inbound queue plus a
// closed signal the owner can select on.
type Subscriber[T any] struct {
	Out       chan T
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close marks the subscriber closed. Idempotent.
func (s *Subscriber[T]) Close() {
	s.closeOnce.Do(func() {
		close(s.Closed)
	})
}

// IsClosed reports whether Close has been called.
func (s *Subscriber[T]) IsClosed() bool {
	select {
	case <-s.Closed:
		return true
	default:
		return false
	}
}

// Hub fans a value out to every attached Subscriber without ever blocking
// the broadcaster. Safe for concurrent Subscribe/Unsubscribe/Broadcast.
type Hub[T any] struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber[T]]struct{}
	QueueDepth  int
	Policy      Policy

	// OnDrop and OnKick, when set, are invoked synchronously from
	// Broadcast for observability (metrics, logging); neither may touch
	// the Hub.
	OnDrop func()
	OnKick func()
}

// New constructs a Hub with the given per-subscriber queue depth and
// backpressure policy.
func New[T any](queueDepth int, policy Policy) *Hub[T] {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	return &Hub[T]{
		subscribers: make(map[*Subscriber[T]]struct{}),
		QueueDepth:  queueDepth,
		Policy:      policy,
	}
}

// Subscribe registers and returns a new Subscriber.
func (h *Hub[T]) Subscribe() *Subscriber[T] {
	sub := &Subscriber[T]{
		Out:    make(chan T, h.QueueDepth),
		Closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe deregisters sub and closes it. Safe to call more than once
// and safe to call concurrently with Broadcast.
func (h *Hub[T]) Unsubscribe(sub *Subscriber[T]) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
	sub.Close()
}

// Snapshot returns a point-in-time slice of attached subscribers.
func (h *Hub[T]) Snapshot() []*Subscriber[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]*Subscriber[T], 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	return subs
}

// Count reports the current subscriber count.
func (h *Hub[T]) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast delivers v to every subscriber, evicting (per Policy) any
// whose queue is full. Never blocks on a slow subscriber.
func (h *Hub[T]) Broadcast(v T) {
	h.BroadcastExcept(v, nil)
}

// BroadcastExcept delivers v to every subscriber other than except (the
// originator of a locally-echoed write, which must not hear its own bytes
// twice). Pass nil to deliver to everyone.
func (h *Hub[T]) BroadcastExcept(v T, except *Subscriber[T]) {
	for _, sub := range h.Snapshot() {
		if sub == except {
			continue
		}
		select {
		case sub.Out <- v:
		default:
			switch h.Policy {
			case PolicyKick:
				if h.OnKick != nil {
					h.OnKick()
				}
				h.Unsubscribe(sub)
			default:
				if h.OnDrop != nil {
					h.OnDrop()
				}
			}
		}
	}
}
