package mainboard

import "github.com/kstaniek/spa-gateway/internal/protocol"

// DeviceKey identifies a client independent of which channel it currently
// holds, so a reconnecting client with the same device_type/client_hash
// is handed its previous channel back.
type DeviceKey struct {
	DeviceType byte
	ClientHash uint16
}

// record is ChannelTracker's per-channel bookkeeping.
type record struct {
	device                 DeviceKey
	channel                protocol.Channel
	consecutiveCtsFailures int
}

// DefaultMaxCTSFailures is the number of consecutive CTS violations a
// channel may accrue before being evicted.
const DefaultMaxCTSFailures = 20

// ChannelTracker maintains the bijection between DeviceKeys and allocated
// client channels. Invariant: byDevice and byChannel agree; removal
// happens only when a device's consecutive failures reach MaxFailures.
type ChannelTracker struct {
	byDevice  map[DeviceKey]protocol.Channel
	byChannel map[protocol.Channel]*record
	order     []protocol.Channel // allocation order, for stable ClearToSend rotation

	MaxFailures int
	nextIndex   int
}

// NewChannelTracker constructs an empty tracker with the given eviction
// threshold (0 uses DefaultMaxCTSFailures).
func NewChannelTracker(maxFailures int) *ChannelTracker {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxCTSFailures
	}
	return &ChannelTracker{
		byDevice:    make(map[DeviceKey]protocol.Channel),
		byChannel:   make(map[protocol.Channel]*record),
		MaxFailures: maxFailures,
	}
}

// ErrChannelsExhausted is returned by Allocate when every client channel
// (0x10..0x2F) is already assigned to some other device.
var ErrChannelsExhausted = errChannelsExhausted{}

type errChannelsExhausted struct{}

func (errChannelsExhausted) Error() string { return "mainboard: client channel range exhausted" }

// Allocate returns key's existing channel if it has one, or assigns the
// next sequential free client channel.
func (t *ChannelTracker) Allocate(key DeviceKey) (protocol.Channel, error) {
	if ch, ok := t.byDevice[key]; ok {
		return ch, nil
	}
	for {
		ch, ok := protocol.NewClientChannel(t.nextIndex)
		if !ok {
			return protocol.Channel{}, ErrChannelsExhausted
		}
		t.nextIndex++
		if _, taken := t.byChannel[ch]; taken {
			continue
		}
		t.byDevice[key] = ch
		t.byChannel[ch] = &record{device: key, channel: ch}
		t.order = append(t.order, ch)
		return ch, nil
	}
}

// IsAllocated reports whether ch is currently assigned to some device.
func (t *ChannelTracker) IsAllocated(ch protocol.Channel) bool {
	_, ok := t.byChannel[ch]
	return ok
}

// RecordSuccess resets ch's consecutive-failure counter after a
// successfully validated exchange.
func (t *ChannelTracker) RecordSuccess(ch protocol.Channel) {
	if r, ok := t.byChannel[ch]; ok {
		r.consecutiveCtsFailures = 0
	}
}

// RecordFailure increments ch's consecutive-failure counter and evicts it
// (removing it from both maps) once MaxFailures is reached. Returns true
// if the channel was evicted by this call.
func (t *ChannelTracker) RecordFailure(ch protocol.Channel) bool {
	r, ok := t.byChannel[ch]
	if !ok {
		return false
	}
	r.consecutiveCtsFailures++
	if r.consecutiveCtsFailures >= t.MaxFailures {
		delete(t.byChannel, ch)
		delete(t.byDevice, r.device)
		for i, c := range t.order {
			if c.Equal(ch) {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		return true
	}
	return false
}

// Channels returns every currently allocated client channel, in
// allocation order, for the TimerTracker's ClearToSend rotation.
func (t *ChannelTracker) Channels() []protocol.Channel {
	out := make([]protocol.Channel, len(t.order))
	copy(out, t.order)
	return out
}

// Count reports how many channels are currently allocated.
func (t *ChannelTracker) Count() int { return len(t.byChannel) }
