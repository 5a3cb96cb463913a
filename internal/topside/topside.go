// Package topside implements the topside panel's role state machine: once
// a channel has been assigned by ctssm, it fetches the three descriptor
// responses (Information, Settings0x04, Configuration), then settles into
// steady-state status tracking and user-originated request dispatch.
package topside

import (
	"time"

	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/statemachine"
)

// Kind discriminates the topside state machine's three states.
type Kind int

const (
	KindWaitingForCts Kind = iota
	KindWaitingForResponse
	KindReadingStatus
)

// Context holds every descriptor the topside panel accumulates plus the
// outbound queue of user-originated requests awaiting a ClearToSend tick.
type Context struct {
	Information   *protocol.InformationResponseMessage
	Settings0x04  []byte
	Configuration *protocol.ConfigurationResponseMessage

	LastStatus   *protocol.StatusUpdateResponseV1
	LastStatusAt time.Time

	Outbound []protocol.MessageType
}

// Enqueue appends a user-originated request to be sent on the next
// ClearToSend tick once steady-state status reading has begun.
func (c *Context) Enqueue(mt protocol.MessageType) {
	c.Outbound = append(c.Outbound, mt)
}

func (c *Context) haveAllDescriptors() bool {
	return c.Information != nil && c.Settings0x04 != nil && c.Configuration != nil
}

// missingDescriptorRequest returns the next SettingsRequest needed to fill
// out the descriptor trio, in Information -> Settings0x04 -> Configuration
// order, or false if all three are already present.
func (c *Context) missingDescriptorRequest() (protocol.SettingsRequestMessage, bool) {
	switch {
	case c.Information == nil:
		return protocol.SettingsRequestMessage{Kind: protocol.SettingsInformation}, true
	case c.Settings0x04 == nil:
		return protocol.SettingsRequestMessage{Kind: protocol.SettingsSettings0x04}, true
	case c.Configuration == nil:
		return protocol.SettingsRequestMessage{Kind: protocol.SettingsConfiguration}, true
	default:
		return protocol.SettingsRequestMessage{}, false
	}
}

// New constructs the topside role Machine, filtered so that only the
// assigned channel and broadcast traffic reach it. myChannel is the channel
// the owning ctssm negotiation produced.
func New(myChannel protocol.Channel) *statemachine.Machine[Kind, Context] {
	m := statemachine.New[Kind, Context](&waitingForCts{}, Context{})
	m.Filter = statemachine.RelevantTo(myChannel)
	return m
}

type waitingForCts struct{}

func (s *waitingForCts) Kind() Kind { return KindWaitingForCts }

func (s *waitingForCts) HandleMessage(args *statemachine.StateArgs[Kind, Context]) statemachine.Result {
	if args.MessageType.Kind != protocol.KindClearToSend {
		return statemachine.Result{Kind: statemachine.NotHandled}
	}
	req, missing := args.Context.missingDescriptorRequest()
	if !missing {
		args.Mover.MoveToState(&readingStatus{})
		return statemachine.Result{Kind: statemachine.HandledNoReply}
	}
	args.Mover.MoveToState(&waitingForResponse{})
	return statemachine.Reply(args.Channel, protocol.MessageType{
		Kind:            protocol.KindSettingsRequest,
		SettingsRequest: req,
	})
}

type waitingForResponse struct{}

func (s *waitingForResponse) Kind() Kind { return KindWaitingForResponse }

func (s *waitingForResponse) HandleMessage(args *statemachine.StateArgs[Kind, Context]) statemachine.Result {
	switch args.MessageType.Kind {
	case protocol.KindInformationResponse:
		info := args.MessageType.Information
		args.Context.Information = &info
	case protocol.KindSettings0x04Response:
		args.Context.Settings0x04 = append([]byte(nil), args.MessageType.Unknown...)
		if args.Context.Settings0x04 == nil {
			args.Context.Settings0x04 = []byte{}
		}
	case protocol.KindConfigurationResponse:
		cfg := args.MessageType.Configuration
		args.Context.Configuration = &cfg
	default:
		return statemachine.Result{Kind: statemachine.NotHandled}
	}

	if args.Context.haveAllDescriptors() {
		args.Mover.MoveToState(&readingStatus{})
	} else {
		args.Mover.MoveToState(&waitingForCts{})
	}
	return statemachine.Result{Kind: statemachine.HandledNoReply}
}

type readingStatus struct{}

func (s *readingStatus) Kind() Kind { return KindReadingStatus }

func (s *readingStatus) HandleMessage(args *statemachine.StateArgs[Kind, Context]) statemachine.Result {
	switch args.MessageType.Kind {
	case protocol.KindClearToSend:
		if len(args.Context.Outbound) > 0 {
			next := args.Context.Outbound[0]
			args.Context.Outbound = args.Context.Outbound[1:]
			return statemachine.Reply(args.Channel, next)
		}
		return statemachine.Reply(args.Channel, protocol.MessageType{Kind: protocol.KindNothingToSend})
	case protocol.KindStatusUpdate:
		status := args.MessageType.Status.V1
		args.Context.LastStatus = &status
		args.Context.LastStatusAt = time.Now()
		return statemachine.Result{Kind: statemachine.HandledNoReply}
	default:
		return statemachine.Result{Kind: statemachine.NotHandled}
	}
}
