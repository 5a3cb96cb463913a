package mainboard

import "github.com/kstaniek/spa-gateway/internal/protocol"

// TickAction is one scheduled action within a TimerTracker cycle.
type TickAction int

const (
	TickNewClientClearToSend TickAction = iota
	TickClearToSend
	TickStatusUpdate
	TickNothing
)

// Tick is one scheduled action, naming the target channel when the
// action is TickClearToSend.
type Tick struct {
	Action  TickAction
	Channel protocol.Channel
}

// DefaultCTSTicksPerCycle is how many ClearToSend slots each schedule
// cycle carries beyond the mandatory NewClientClearToSend and StatusUpdate
// ticks: one per allocatable client channel, so a fully populated bus
// still grants every client a slot each cycle.
const DefaultCTSTicksPerCycle = protocol.NumClientChannels

// TimerTracker walks a finite cyclic schedule: tick 0 is always
// NewClientClearToSend, the half-point is StatusUpdate, and every other
// tick rotates ClearToSend through the currently allocated client
// channels (or TickNothing if none are allocated).
type TimerTracker struct {
	ctsTicksPerCycle int
	pos              int
	rrIndex          int
}

// NewTimerTracker constructs a TimerTracker. ctsTicks<=0 uses
// DefaultCTSTicksPerCycle.
func NewTimerTracker(ctsTicks int) *TimerTracker {
	if ctsTicks <= 0 {
		ctsTicks = DefaultCTSTicksPerCycle
	}
	return &TimerTracker{ctsTicksPerCycle: ctsTicks}
}

// TotalTicksPerCycle is 2 + cts_ticks: one NewClientClearToSend tick, one
// StatusUpdate tick, and cts_ticks ClearToSend/Nothing ticks.
func (t *TimerTracker) TotalTicksPerCycle() int { return 2 + t.ctsTicksPerCycle }

// NextAction advances the schedule by one tick and returns the action due,
// rotating ClearToSend through channels (the currently allocated client
// channels, in allocation order).
func (t *TimerTracker) NextAction(channels []protocol.Channel) Tick {
	total := t.TotalTicksPerCycle()
	half := total / 2
	pos := t.pos
	t.pos = (t.pos + 1) % total

	switch {
	case pos == 0:
		return Tick{Action: TickNewClientClearToSend}
	case pos == half:
		return Tick{Action: TickStatusUpdate}
	case len(channels) == 0:
		return Tick{Action: TickNothing}
	default:
		ch := channels[t.rrIndex%len(channels)]
		t.rrIndex++
		return Tick{Action: TickClearToSend, Channel: ch}
	}
}
