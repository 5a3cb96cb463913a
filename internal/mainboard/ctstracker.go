package mainboard

import (
	"time"

	"github.com/kstaniek/spa-gateway/internal/protocol"
)

// DefaultClearToSendWindow bounds how long after a CTS-bearing tick a
// reply may arrive.
const DefaultClearToSendWindow = 20 * time.Millisecond

// Policy selects how strictly CTS authorization is enforced.
type Policy int

const (
	// PolicyAlways enforces CTS for every allocated channel.
	PolicyAlways Policy = iota
	// PolicyForMultipleClients enforces CTS only once two or more
	// channels are allocated; a single client may transmit without a
	// live authorization.
	PolicyForMultipleClients
	// PolicyNever suppresses enforcement outright; the engine still logs
	// each violation.
	PolicyNever
)

// ClearToSendTracker authorizes at most one channel to transmit at a
// time, for a bounded window after the authorizing tick.
type ClearToSendTracker struct {
	channel      protocol.Channel
	authorizedAt time.Time
	hasAuth      bool

	Window time.Duration
}

// NewClearToSendTracker constructs a tracker with no outstanding
// authorization. window<=0 uses DefaultClearToSendWindow.
func NewClearToSendTracker(window time.Duration) *ClearToSendTracker {
	if window <= 0 {
		window = DefaultClearToSendWindow
	}
	return &ClearToSendTracker{Window: window}
}

// Authorize marks channel as the sole authorized sender as of now.
func (t *ClearToSendTracker) Authorize(channel protocol.Channel, now time.Time) {
	t.channel = channel
	t.authorizedAt = now
	t.hasAuth = true
}

// Clear revokes any outstanding authorization.
func (t *ClearToSendTracker) Clear() {
	t.hasAuth = false
}

// IsAuthorized reports whether channel is the currently authorized sender
// and the authorization has not expired as of now.
func (t *ClearToSendTracker) IsAuthorized(channel protocol.Channel, now time.Time) bool {
	if !t.hasAuth {
		return false
	}
	if !t.channel.Equal(channel) {
		return false
	}
	return now.Sub(t.authorizedAt) <= t.Window
}

// WindowClear reports whether the previously issued authorization (if any)
// has expired, i.e. whether the engine may issue a new CTS-granting tick
// without two authorizations overlapping.
func (t *ClearToSendTracker) WindowClear(now time.Time) bool {
	if !t.hasAuth {
		return true
	}
	return now.Sub(t.authorizedAt) > t.Window
}

// Enforce reports whether policy requires CTS enforcement given the
// current number of allocated channels.
func (p Policy) Enforce(allocatedChannels int) bool {
	switch p {
	case PolicyNever:
		return false
	case PolicyForMultipleClients:
		return allocatedChannels >= 2
	default:
		return true
	}
}
