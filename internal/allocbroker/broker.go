// Package allocbroker arbitrates which single CTS state machine may act on
// a NewClientClearToSend invitation at a time: the Wi-Fi module and the
// topside panel both sit on the bus as local client state machines and can
// observe the same NewClientClearToSend broadcast in the same tick, so
// whichever one reaches the broker first wins the race and the other backs
// off rather than both trying to claim a channel.
package allocbroker

import "sync/atomic"

// Broker hands out a single allocation Token at a time.
type Broker struct {
	busy atomic.Bool
}

// New constructs an unlocked Broker.
func New() *Broker {
	return &Broker{}
}

// TryAllocate attempts to acquire the broker's single token. It returns
// (token, true) on success, or (nil, false) if another state machine
// currently holds it.
func (b *Broker) TryAllocate() (*Token, bool) {
	if !b.busy.CompareAndSwap(false, true) {
		return nil, false
	}
	return &Token{busy: &b.busy}, true
}

// Token represents exclusive ownership of the broker. The holder must call
// Release once it has finished allocating (or failed to allocate) a
// channel.
type Token struct {
	busy     *atomic.Bool
	released atomic.Bool
}

// Release returns the token to the broker. Safe to call more than once;
// only the first call has an effect.
func (t *Token) Release() {
	if t.released.CompareAndSwap(false, true) {
		t.busy.Store(false)
	}
}
