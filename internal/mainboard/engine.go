// Package mainboard implements the authoritative main-board engine: a
// single-writer event loop that arbitrates the shared bus via
// NewClientClearToSend/ClearToSend/StatusUpdate ticks, allocates client
// channels, enforces the CTS window, and answers client requests against
// a MockDevice. A reader goroutine and a ticker feed a single
// event-handler loop that owns all state.
package mainboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kstaniek/spa-gateway/internal/logging"
	"github.com/kstaniek/spa-gateway/internal/metrics"
	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/protoerr"
	"github.com/kstaniek/spa-gateway/internal/transport"
)

// eventKind discriminates the event sources the engine's single handler
// goroutine selects on.
type eventKind int

const (
	eventMessage eventKind = iota
	eventTick
	eventInitFinished
	eventShutdown
)

type event struct {
	kind    eventKind
	channel protocol.Channel
	mt      protocol.MessageType
	err     error
}

// Engine is the main-board's authoritative arbiter.
type Engine struct {
	reader *transport.FramedReader
	writer *transport.FramedWriter

	tracker    *ChannelTracker
	cts        *ClearToSendTracker
	timer      *TimerTracker
	device     *MockDevice
	policy     Policy
	initDelay  time.Duration
	tickPeriod time.Duration

	logger  protocol.MessageLogger
	slogger *slog.Logger

	events chan event
	done   chan struct{}
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithMaxCTSFailures overrides DefaultMaxCTSFailures.
func WithMaxCTSFailures(n int) Option {
	return func(e *Engine) { e.tracker = NewChannelTracker(n) }
}

// WithClearToSendWindow overrides DefaultClearToSendWindow.
func WithClearToSendWindow(d time.Duration) Option {
	return func(e *Engine) { e.cts = NewClearToSendTracker(d) }
}

// WithCTSPolicy selects the enforcement policy (default PolicyAlways).
func WithCTSPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithCTSTicksPerCycle overrides DefaultCTSTicksPerCycle.
func WithCTSTicksPerCycle(n int) Option {
	return func(e *Engine) { e.timer = NewTimerTracker(n) }
}

// WithInitDelay overrides DefaultInitDelay, the duration from startup
// until the mock device transitions out of Initializing.
func WithInitDelay(d time.Duration) Option {
	return func(e *Engine) { e.initDelay = d }
}

// WithDevice substitutes the MockDevice (mainly for tests).
func WithDevice(d *MockDevice) Option {
	return func(e *Engine) { e.device = d }
}

// New constructs an Engine driving t, a Transport (or a
// busswitch.LogicalTransport) that already looks like a private
// connection to this logical peer.
func New(t transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		reader:    transport.NewFramedReader(t),
		writer:    transport.NewFramedWriter(t),
		tracker:   NewChannelTracker(0),
		cts:       NewClearToSendTracker(0),
		timer:     NewTimerTracker(0),
		device:    NewMockDevice(),
		policy:    PolicyAlways,
		initDelay: DefaultInitDelay,
		logger:    protocol.NewMessageLogger("mainboard"),
		slogger:   logging.L().With("component", "mainboard"),
		events:    make(chan event, 32),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tickPeriod = time.Second / time.Duration(e.timer.TotalTicksPerCycle())
	return e
}

// Device exposes the underlying MockDevice for inspection in tests and by
// the gateway's view-model emission.
func (e *Engine) Device() *MockDevice { return e.device }

// Stop requests cooperative shutdown; Run returns once the current event
// (if any) finishes processing.
func (e *Engine) Stop() {
	select {
	case e.events <- event{kind: eventShutdown}:
	case <-e.done:
	}
}

// Run starts the reader goroutine and the tick timer and drives the
// event-handler loop until ctx is canceled, Stop is called, or a fatal
// error occurs.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	readerDone := make(chan struct{})
	go e.readLoop(readerDone)

	ticker := time.NewTicker(e.tickPeriod)
	defer ticker.Stop()

	initTimer := time.NewTimer(e.initDelay)
	defer initTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-initTimer.C:
			e.handleInitFinished()
		case <-ticker.C:
			if err := e.handleTick(); err != nil {
				return err
			}
		case ev := <-e.events:
			switch ev.kind {
			case eventShutdown:
				return nil
			case eventMessage:
				if err := e.handleMessage(ev); err != nil {
					return err
				}
			}
		case <-readerDone:
			return fmt.Errorf("mainboard: %w", protoerr.ErrFatal)
		}
	}
}

// readLoop blocks on the transport, decodes frames into Messages, and
// forwards each as an eventMessage. It never touches engine state
// directly; the handler goroutine is the sole owner.
func (e *Engine) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		msg, err := e.reader.NextMessage()
		if err != nil {
			e.slogger.Error("mainboard_read_error", "error", err)
			return
		}
		metrics.IncSerialRx()
		mt, err := protocol.DecodeMessageType(msg)
		if err != nil {
			e.slogger.Warn("mainboard_decode_error", "error", err, "channel", msg.Channel.String())
			select {
			case e.events <- event{kind: eventMessage, channel: msg.Channel, err: protoerr.ErrClientUnsupported}:
			case <-e.done:
				return
			}
			continue
		}
		e.logger.Log(protocol.Inbound, msg)
		select {
		case e.events <- event{kind: eventMessage, channel: msg.Channel, mt: mt}:
		case <-e.done:
			return
		}
	}
}

func (e *Engine) handleInitFinished() {
	e.device.FinishInit()
	e.slogger.Info("mainboard_init_finished")
}

// handleTick executes one TimerTracker action. A CTS-granting tick is
// skipped (with a warning, except for
// NewClientClearToSend whose lack of reply is the expected common case)
// if the previous authorization window has not yet cleared.
func (e *Engine) handleTick() error {
	tick := e.timer.NextAction(e.tracker.Channels())
	now := time.Now()

	switch tick.Action {
	case TickNewClientClearToSend:
		if !e.cts.WindowClear(now) {
			return nil
		}
		if err := e.send(protocol.MulticastRequest, protocol.MessageType{Kind: protocol.KindNewClientClearToSend}); err != nil {
			return err
		}
		e.cts.Authorize(protocol.MulticastRequest, now)
	case TickClearToSend:
		if !e.cts.WindowClear(now) {
			e.slogger.Warn("mainboard_tick_skipped", "action", "clear_to_send", "channel", tick.Channel.String())
			return nil
		}
		if err := e.send(tick.Channel, protocol.MessageType{Kind: protocol.KindClearToSend}); err != nil {
			return err
		}
		e.cts.Authorize(tick.Channel, now)
	case TickStatusUpdate:
		status := e.device.StatusUpdate()
		if err := e.send(protocol.MulticastBroadcast, protocol.MessageType{
			Kind:   protocol.KindStatusUpdate,
			Status: protocol.StatusUpdateMessage{V1: status},
		}); err != nil {
			return err
		}
	case TickNothing:
	}
	return nil
}

func (e *Engine) send(channel protocol.Channel, mt protocol.MessageType) error {
	msg, err := mt.ToMessage(channel)
	if err != nil {
		return fmt.Errorf("mainboard: encode: %w", err)
	}
	e.logger.Log(protocol.Outbound, msg)
	if err := e.writer.Write(msg); err != nil {
		return fmt.Errorf("mainboard: write: %w", err)
	}
	metrics.IncSerialTx()
	return nil
}

// handleMessage validates the sending channel and its CTS authorization,
// then dispatches the message.
func (e *Engine) handleMessage(ev event) error {
	if ev.err != nil {
		metrics.IncError(protoerr.Classify(ev.err))
		return nil
	}
	channel := ev.channel
	now := time.Now()

	// Every incoming message consumes the outstanding authorization, valid
	// or not: one CTS grant admits at most one message, so a second frame
	// inside the same window is a violation, not a free ride.
	authorized := e.cts.IsAuthorized(channel, now)
	e.cts.Clear()

	if !channel.IsMulticastRequest() && !e.tracker.IsAllocated(channel) {
		if channel.IsClient() {
			e.slogger.Warn("mainboard_needs_reconnect", "channel", channel.String())
			metrics.IncError(protoerr.Classify(protoerr.ErrClientNeedsReconnect))
		} else {
			e.slogger.Warn("mainboard_unsupported_channel", "channel", channel.String())
			metrics.IncError(protoerr.Classify(protoerr.ErrClientUnsupported))
		}
		return nil
	}

	if e.tracker.IsAllocated(channel) && e.policy.Enforce(e.tracker.Count()) {
		if !authorized {
			evicted := e.tracker.RecordFailure(channel)
			if evicted {
				e.slogger.Warn("mainboard_channel_removed", "channel", channel.String())
				metrics.IncCtsFailure(metrics.CtsActionDeassign)
			} else {
				e.slogger.Warn("mainboard_cts_violation", "channel", channel.String())
				metrics.IncCtsFailure(metrics.CtsActionRetry)
			}
			return nil
		}
		e.tracker.RecordSuccess(channel)
	} else if e.policy == PolicyNever && !authorized && e.tracker.IsAllocated(channel) {
		e.slogger.Warn("mainboard_cts_violation_not_enforced", "channel", channel.String())
	}

	return e.dispatch(channel, ev.mt)
}

// dispatch answers the settled, CTS-validated message.
func (e *Engine) dispatch(channel protocol.Channel, mt protocol.MessageType) error {
	switch mt.Kind {
	case protocol.KindChannelAssignmentRequest:
		return e.handleChannelAssignmentRequest(mt)
	case protocol.KindChannelAssignmentAck:
		// Ack confirms the assignment; nothing further to do.
		return nil
	case protocol.KindNothingToSend:
		// The client had nothing queued for its grant.
		return nil
	case protocol.KindSettingsRequest:
		return e.handleSettingsRequest(channel, mt.SettingsRequest)
	case protocol.KindToggleItemRequest:
		e.device.ApplyToggleItem(mt.ItemCode)
		e.slogger.Info("mainboard_toggle_item", "item", mt.ItemCode, "channel", channel.String())
		return nil
	case protocol.KindSetTemperatureRequest:
		e.device.ApplySetTemperature(mt.Temperature)
		e.slogger.Info("mainboard_set_temperature", "raw", mt.Temperature.RawValue, "channel", channel.String())
		return nil
	case protocol.KindSetTimeRequest:
		e.device.ApplySetTime(mt.Time)
		e.slogger.Info("mainboard_set_time", "channel", channel.String())
		return nil
	case protocol.KindSetPreferenceRequest:
		e.slogger.Info("mainboard_set_preference", "kind", mt.SetPreference.Kind, "channel", channel.String())
		return nil
	case protocol.KindLockRequest:
		e.slogger.Info("mainboard_lock_request", "request", mt.Lock, "channel", channel.String())
		return nil
	case protocol.KindChangeSetupRequest:
		e.device.Information.CurrentConfigurationSetup = mt.SetupNumber
		e.slogger.Info("mainboard_change_setup", "setup", mt.SetupNumber, "channel", channel.String())
		return nil
	case protocol.KindToggleTestSettingRequest:
		e.slogger.Info("mainboard_toggle_test_setting", "request", mt.ToggleTest, "channel", channel.String())
		return nil
	default:
		e.slogger.Warn("mainboard_unsupported_message", "kind", mt.Kind, "channel", channel.String())
		metrics.IncError(protoerr.Classify(protoerr.ErrClientUnsupported))
		return nil
	}
}

func (e *Engine) handleChannelAssignmentRequest(mt protocol.MessageType) error {
	key := DeviceKey{DeviceType: mt.DeviceType, ClientHash: mt.ClientHash}
	channel, err := e.tracker.Allocate(key)
	if err != nil {
		e.slogger.Error("mainboard_channel_exhausted", "device_type", mt.DeviceType)
		metrics.IncChannelAllocationFailure()
		return nil
	}
	metrics.IncChannelAllocation()
	return e.send(protocol.MulticastRequest, protocol.MessageType{
		Kind:       protocol.KindChannelAssignmentResponse,
		Channel:    channel,
		ClientHash: mt.ClientHash,
	})
}

func (e *Engine) handleSettingsRequest(channel protocol.Channel, req protocol.SettingsRequestMessage) error {
	switch req.Kind {
	case protocol.SettingsInformation:
		return e.send(channel, protocol.MessageType{Kind: protocol.KindInformationResponse, Information: e.device.Information})
	case protocol.SettingsConfiguration:
		return e.send(channel, protocol.MessageType{Kind: protocol.KindConfigurationResponse, Configuration: e.device.Configuration})
	case protocol.SettingsPreferences:
		return e.send(channel, protocol.MessageType{Kind: protocol.KindPreferencesResponse, Preferences: e.device.Preferences})
	case protocol.SettingsFilterCycles:
		return e.send(channel, protocol.MessageType{Kind: protocol.KindFilterCycles})
	case protocol.SettingsFaultLog:
		entry := e.faultLogEntry(req.EntryNum)
		return e.send(channel, protocol.MessageType{Kind: protocol.KindFaultLogResponse, Fault: entry})
	case protocol.SettingsGfciTest:
		return e.send(channel, protocol.MessageType{Kind: protocol.KindGfciTestResponse, GfciResult: protocol.Known(protocol.GfciPass, byte(protocol.GfciPass))})
	case protocol.SettingsSettings0x04:
		return e.send(channel, protocol.MessageType{Kind: protocol.KindSettings0x04Response, Unknown: e.device.Settings0x04})
	default:
		e.slogger.Warn("mainboard_unsupported_settings_request", "kind", req.Kind, "channel", channel.String())
		metrics.IncError(protoerr.Classify(protoerr.ErrClientUnsupported))
		return nil
	}
}

func (e *Engine) faultLogEntry(entryNum byte) protocol.FaultResponseMessage {
	if int(entryNum) < len(e.device.FaultLog) {
		return e.device.FaultLog[entryNum]
	}
	return protocol.FaultResponseMessage{
		TotalEntries: byte(len(e.device.FaultLog)),
		EntryNumber:  entryNum,
		FaultCode:    protocol.Known(protocol.FaultCode(0), 0),
	}
}
