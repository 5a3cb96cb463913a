// Package wifirole implements the Wi-Fi module's per-role relay state
// machine: a transparent pass-through between the serial bus and IP
// clients, once ctssm has assigned it a channel.
package wifirole

import (
	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/statemachine"
)

// Kind discriminates wifirole's (single) state.
type Kind int

const KindRelaying Kind = 0

// Context holds the outbound queue of messages waiting for a ClearToSend
// tick, and the inbound queue of serial-bus traffic to forward to IP
// clients.
type Context struct {
	Outbound []protocol.MessageType
	ToRelay  []protocol.Message
}

// Enqueue appends a message to be sent on the next ClearToSend tick.
func (c *Context) Enqueue(mt protocol.MessageType) {
	c.Outbound = append(c.Outbound, mt)
}

// DrainRelay removes and returns everything queued for relay to IP
// clients so far.
func (c *Context) DrainRelay() []protocol.Message {
	out := c.ToRelay
	c.ToRelay = nil
	return out
}

// WifiVirtualChannel is the dedicated channel the gateway's TCP relay
// addresses IP-origin traffic to internally before it is remapped onto
// the module's assigned bus channel.
var WifiVirtualChannel = protocol.ChannelFromByte(0xFD)

// New constructs the wifirole Machine, filtered to the assigned channel,
// broadcast traffic, and the Wi-Fi virtual channel used for locally
// injected IP-origin messages.
func New(myChannel protocol.Channel) *statemachine.Machine[Kind, Context] {
	m := statemachine.New[Kind, Context](&relaying{}, Context{})
	m.Filter = statemachine.RelevantTo(myChannel, WifiVirtualChannel)
	return m
}

type relaying struct{}

func (s *relaying) Kind() Kind { return KindRelaying }

func (s *relaying) HandleMessage(args *statemachine.StateArgs[Kind, Context]) statemachine.Result {
	if args.MessageType.Kind == protocol.KindClearToSend {
		if len(args.Context.Outbound) > 0 {
			next := args.Context.Outbound[0]
			args.Context.Outbound = args.Context.Outbound[1:]
			return statemachine.Reply(args.Channel, next)
		}
		return statemachine.Reply(args.Channel, protocol.MessageType{Kind: protocol.KindNothingToSend})
	}

	msg, err := args.MessageType.ToMessage(args.Channel)
	if err != nil {
		return statemachine.Result{Kind: statemachine.HandledNoReply}
	}
	args.Context.ToRelay = append(args.Context.ToRelay, msg)
	return statemachine.Result{Kind: statemachine.HandledNoReply}
}
