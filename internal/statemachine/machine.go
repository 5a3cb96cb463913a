// Package statemachine is the generic message-driven state machine harness
// shared by every protocol role (CTS arbitration, topside panel, Wi-Fi
// relay). A state
// handles one incoming message and either replies, stays silent, or
// declines to handle it, and may additionally request a transition to a
// new state. The transition is deferred ("state mover" pattern) so a
// state's handler always runs to completion against the state it was
// entered with, rather than applying a transition mid-handler.
package statemachine

import (
	"fmt"

	"github.com/kstaniek/spa-gateway/internal/protocol"
)

// State is one node of a message-driven state machine. Kind must be a
// comparable discriminant (an enum-like type) used to detect whether a
// requested transition is actually a change of state.
type State[K comparable, C any] interface {
	Kind() K
	HandleMessage(args *StateArgs[K, C]) Result
}

// Mover records a requested state transition to be applied once the
// current handler returns; the handler itself never mutates the running
// machine directly.
type Mover[K comparable, C any] struct {
	next State[K, C]
}

// MoveToState records the transition. Does not take effect until the
// current HandleMessage call returns.
func (m *Mover[K, C]) MoveToState(s State[K, C]) {
	m.next = s
}

// StateArgs is passed to State.HandleMessage for one incoming message.
type StateArgs[K comparable, C any] struct {
	Mover        *Mover[K, C]
	Channel      protocol.Channel
	MessageType  protocol.MessageType
	Context      *C
	ChannelMatch FilterResult
}

// ResultKind discriminates the three outcomes a state handler can produce.
type ResultKind int

const (
	HandledNoReply ResultKind = iota
	SendReply
	NotHandled
)

// Result is what a state handler returns: either nothing to send, a reply
// message (or an encode failure) addressed by the state itself, or a
// declaration that this state did not recognize the message at all.
type Result struct {
	Kind  ResultKind
	Reply protocol.Message
	Err   error
}

// Reply builds a SendReply result, encoding mt onto channel.
func Reply(channel protocol.Channel, mt protocol.MessageType) Result {
	msg, err := mt.ToMessage(channel)
	if err != nil {
		return Result{Kind: SendReply, Err: err}
	}
	return Result{Kind: SendReply, Reply: msg}
}

// Machine drives a single State through a stream of incoming messages,
// writing replies through a MessageWriter and logging every transit.
type Machine[K comparable, C any] struct {
	state   State[K, C]
	mover   Mover[K, C]
	Context C
	Filter  ChannelFilter
}

// New constructs a Machine starting in initial, with the given context.
func New[K comparable, C any](initial State[K, C], context C) *Machine[K, C] {
	return &Machine[K, C]{state: initial, Context: context, Filter: NoFilter()}
}

// StateKind reports the current state's discriminant.
func (m *Machine[K, C]) StateKind() K { return m.state.Kind() }

// MessageWriter is anything that can send an encoded Message onto the bus.
// Satisfied by *transport.FramedWriter.
type MessageWriter interface {
	Write(protocol.Message) error
}

// HandleMessage applies the channel filter, dispatches to the current
// state, sends any reply, logs the transit, and finally applies a deferred
// transition if the handler requested one.
func (m *Machine[K, C]) HandleMessage(
	writer MessageWriter,
	logger protocol.MessageLogger,
	channel protocol.Channel,
	mt protocol.MessageType,
) error {
	filterResult := m.Filter.Apply(channel)
	if filterResult == FilterBlocked {
		return nil
	}

	m.mover.next = nil
	args := &StateArgs[K, C]{
		Mover:        &m.mover,
		Channel:      channel,
		MessageType:  mt,
		Context:      &m.Context,
		ChannelMatch: filterResult,
	}
	result := m.state.HandleMessage(args)
	if err := m.dispatchResult(writer, logger, result); err != nil {
		return err
	}

	if next := m.mover.next; next != nil {
		m.mover.next = nil
		m.maybeMoveToState(next)
	}
	return nil
}

func (m *Machine[K, C]) dispatchResult(
	writer MessageWriter,
	logger protocol.MessageLogger,
	result Result,
) error {
	switch result.Kind {
	case HandledNoReply, NotHandled:
		return nil
	case SendReply:
		if result.Err != nil {
			return fmt.Errorf("statemachine: encode reply: %w", result.Err)
		}
		logger.Log(protocol.Outbound, result.Reply)
		if err := writer.Write(result.Reply); err != nil {
			return fmt.Errorf("statemachine: write reply: %w", err)
		}
		return nil
	default:
		return nil
	}
}

func (m *Machine[K, C]) maybeMoveToState(newState State[K, C]) {
	if m.state.Kind() != newState.Kind() {
		m.state = newState
	}
}
