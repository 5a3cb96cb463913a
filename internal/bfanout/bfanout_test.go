package bfanout

import (
	"testing"
	"time"
)

func TestHub_Broadcast_DropDoesNotBlock(t *testing.T) {
	h := New[int](4, PolicyDrop)
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		h.Broadcast(i)
	}
	elapsed := time.Since(start)
	if elapsed > time.Second {
		t.Fatalf("Broadcast took too long: %s", elapsed)
	}
	if len(sub.Out) != cap(sub.Out) {
		t.Fatalf("expected subscriber buffer to be full, got len=%d cap=%d", len(sub.Out), cap(sub.Out))
	}
}

func TestHub_Broadcast_DropKeepsOthersFlowing(t *testing.T) {
	h := New[int](1, PolicyDrop)
	slow := h.Subscribe()
	fast := &Subscriber[int]{Out: make(chan int, 16), Closed: make(chan struct{})}
	h.mu.Lock()
	h.subscribers[fast] = struct{}{}
	h.mu.Unlock()
	defer h.Unsubscribe(slow)
	defer h.Unsubscribe(fast)

	h.Broadcast(1) // fills slow's depth-1 queue

	for i := 0; i < 10; i++ {
		h.Broadcast(2)
	}

	got := 0
	timeout := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case <-fast.Out:
			got++
		case <-timeout:
			break loop
		default:
			if got > 0 {
				break loop
			}
		}
	}
	if got == 0 {
		t.Fatal("expected fast subscriber to receive broadcasts despite slow subscriber dropping")
	}
}

func TestHub_Broadcast_KickClosesFullSubscriber(t *testing.T) {
	h := New[int](1, PolicyKick)
	sub := h.Subscribe()
	h.Broadcast(1) // fills the queue
	h.Broadcast(2) // queue still full -> kicked

	select {
	case <-sub.Closed:
	default:
		t.Fatal("expected subscriber to be closed after kick")
	}
	if h.Count() != 0 {
		t.Fatalf("expected subscriber to be deregistered after kick, count=%d", h.Count())
	}
}

func TestHub_BroadcastExcept_SkipsOriginator(t *testing.T) {
	h := New[int](4, PolicyDrop)
	origin := h.Subscribe()
	other := h.Subscribe()
	defer h.Unsubscribe(origin)
	defer h.Unsubscribe(other)

	h.BroadcastExcept(42, origin)

	select {
	case <-origin.Out:
		t.Fatal("originator should not receive its own echoed broadcast")
	default:
	}
	select {
	case v := <-other.Out:
		if v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	default:
		t.Fatal("expected other subscriber to receive the broadcast")
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	h := New[int](4, PolicyDrop)
	if h.Count() != 0 {
		t.Fatalf("expected empty hub, got %d", h.Count())
	}
	sub := h.Subscribe()
	if h.Count() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Count())
	}
	h.Unsubscribe(sub)
	if h.Count() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", h.Count())
	}
	select {
	case <-sub.Closed:
	default:
		t.Fatal("expected subscriber to be closed after unsubscribe")
	}
}
