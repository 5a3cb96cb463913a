// Package ctssm implements the client-side clear-to-send negotiation state
// machine: a new client races (via the allocator broker) to answer the
// main board's NewClientClearToSend invitation, then waits for its channel
// assignment to be acknowledged.
package ctssm

import (
	"math/rand"
	"time"

	"github.com/kstaniek/spa-gateway/internal/allocbroker"
	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/statemachine"
)

// Kind discriminates the CTS state machine's three states.
type Kind int

const (
	KindWaitingForNewClientCTS Kind = iota
	KindWaitingForChannelAssignment
	KindChannelAssigned
)

// assignmentTimeout is how long WaitingForChannelAssignment waits before
// giving up on a stale request and releasing its broker token.
const assignmentTimeout = 2 * time.Second

// Context is the CTS state machine's private state: the device identity
// it negotiates with, and the channel it was ultimately assigned.
type Context struct {
	DeviceType byte
	ClientHash uint16

	// Assigned is set once the ChannelAssigned state is reached; the
	// owning role state machine reads this to learn which channel it may
	// now use.
	Assigned   protocol.Channel
	HasChannel bool
}

// NewContext builds a Context with a freshly minted random 16-bit client
// hash; each call draws a new hash.
func NewContext(deviceType byte) Context {
	return Context{
		DeviceType: deviceType,
		ClientHash: uint16(rand.Intn(1 << 16)),
	}
}

// New constructs a ctssm Machine in its initial WaitingForNewClientCTS
// state, filtered to the multicast assignment channel (plus broadcast,
// which RelevantTo always admits). The filter stays the same after a
// channel is assigned.
func New(ctx Context, broker *allocbroker.Broker) *statemachine.Machine[Kind, Context] {
	m := statemachine.New[Kind, Context](&waitingForNewClientCTS{broker: broker}, ctx)
	m.Filter = statemachine.RelevantTo(protocol.MulticastRequest)
	return m
}

type waitingForNewClientCTS struct {
	broker *allocbroker.Broker
}

func (s *waitingForNewClientCTS) Kind() Kind { return KindWaitingForNewClientCTS }

func (s *waitingForNewClientCTS) HandleMessage(args *statemachine.StateArgs[Kind, Context]) statemachine.Result {
	if args.MessageType.Kind != protocol.KindNewClientClearToSend {
		return statemachine.Result{Kind: statemachine.NotHandled}
	}
	token, ok := s.broker.TryAllocate()
	if !ok {
		// Another co-located client machine already claimed this round.
		return statemachine.Result{Kind: statemachine.HandledNoReply}
	}
	reply := statemachine.Reply(protocol.MulticastRequest, protocol.MessageType{
		Kind:       protocol.KindChannelAssignmentRequest,
		DeviceType: args.Context.DeviceType,
		ClientHash: args.Context.ClientHash,
	})
	args.Mover.MoveToState(&waitingForChannelAssignment{
		broker:      s.broker,
		token:       token,
		requestedAt: time.Now(),
	})
	return reply
}

type waitingForChannelAssignment struct {
	broker      *allocbroker.Broker
	token       *allocbroker.Token
	requestedAt time.Time
}

func (s *waitingForChannelAssignment) Kind() Kind { return KindWaitingForChannelAssignment }

func (s *waitingForChannelAssignment) HandleMessage(args *statemachine.StateArgs[Kind, Context]) statemachine.Result {
	switch args.MessageType.Kind {
	case protocol.KindNewClientClearToSend:
		if time.Since(s.requestedAt) >= assignmentTimeout {
			s.token.Release()
			args.Mover.MoveToState(&waitingForNewClientCTS{broker: s.broker})
		}
		return statemachine.Result{Kind: statemachine.HandledNoReply}
	case protocol.KindChannelAssignmentResponse:
		if args.MessageType.ClientHash != args.Context.ClientHash {
			return statemachine.Result{Kind: statemachine.HandledNoReply}
		}
		channel := args.MessageType.Channel
		args.Context.Assigned = channel
		args.Context.HasChannel = true
		s.token.Release()
		args.Mover.MoveToState(&channelAssigned{channel: channel})
		return statemachine.Reply(channel, protocol.MessageType{Kind: protocol.KindChannelAssignmentAck})
	default:
		return statemachine.Result{Kind: statemachine.NotHandled}
	}
}

type channelAssigned struct {
	channel protocol.Channel
}

func (s *channelAssigned) Kind() Kind { return KindChannelAssigned }

// HandleMessage absorbs any further traffic that passes the machine's
// filter (multicast-request and broadcast) without replying; traffic on the
// assigned channel is blocked by that filter and is handled by the owning
// role state machine (topside/wifirole) via its own filtered machine.
func (s *channelAssigned) HandleMessage(_ *statemachine.StateArgs[Kind, Context]) statemachine.Result {
	return statemachine.Result{Kind: statemachine.HandledNoReply}
}
