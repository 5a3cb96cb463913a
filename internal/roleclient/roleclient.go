// Package roleclient composes the ctssm channel-negotiation state machine
// with a role's own message state machine (topside, wifirole): every
// client-side peer on the bus first negotiates a channel, then hands every
// subsequent message to the role machine filtered to that channel.
package roleclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/kstaniek/spa-gateway/internal/allocbroker"
	"github.com/kstaniek/spa-gateway/internal/ctssm"
	"github.com/kstaniek/spa-gateway/internal/metrics"
	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/statemachine"
	"github.com/kstaniek/spa-gateway/internal/transport"
)

// Client drives a single logical bus peer through channel negotiation and
// then steady-state role handling.
type Client[K comparable, C any] struct {
	reader *transport.FramedReader
	writer *transport.FramedWriter
	logger protocol.MessageLogger

	broker  *allocbroker.Broker
	cts     *statemachine.Machine[ctssm.Kind, ctssm.Context]
	newRole func(protocol.Channel) *statemachine.Machine[K, C]

	// mu guards role and assigned, which the Run goroutine writes and
	// callers inspect from their own goroutines.
	mu       sync.Mutex
	role     *statemachine.Machine[K, C]
	assigned protocol.Channel
}

// New constructs a Client bound to transport t. deviceType identifies the
// peer role in ChannelAssignmentRequest; newRole builds the role-specific
// Machine once a channel has been assigned.
func New[K comparable, C any](
	t transport.Transport,
	broker *allocbroker.Broker,
	deviceType byte,
	newRole func(protocol.Channel) *statemachine.Machine[K, C],
	debugName string,
) *Client[K, C] {
	return &Client[K, C]{
		reader:  transport.NewFramedReader(t),
		writer:  transport.NewFramedWriter(t),
		logger:  protocol.NewMessageLogger(debugName),
		broker:  broker,
		cts:     ctssm.New(ctssm.NewContext(deviceType), broker),
		newRole: newRole,
	}
}

// Channel reports the assigned channel, or the zero Channel and false if
// negotiation has not completed yet.
func (c *Client[K, C]) Channel() (protocol.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role == nil {
		return protocol.Channel{}, false
	}
	return c.assigned, true
}

// Role returns the role Machine once negotiation has completed, or nil
// before that.
func (c *Client[K, C]) Role() *statemachine.Machine[K, C] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Run blocks, reading and dispatching messages until ctx is canceled or
// the transport errors out.
func (c *Client[K, C]) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := c.reader.NextMessage()
		if err != nil {
			return fmt.Errorf("roleclient: read: %w", err)
		}
		metrics.IncSerialRx()
		mt, err := protocol.DecodeMessageType(msg)
		if err != nil {
			continue
		}
		c.logger.Log(protocol.Inbound, msg)
		if err := c.dispatch(msg.Channel, mt); err != nil {
			return err
		}
	}
}

func (c *Client[K, C]) dispatch(channel protocol.Channel, mt protocol.MessageType) error {
	role := c.Role()
	if role == nil {
		if err := c.cts.HandleMessage(c.writer, c.logger, channel, mt); err != nil {
			return fmt.Errorf("roleclient: cts: %w", err)
		}
		if c.cts.Context.HasChannel {
			c.mu.Lock()
			c.assigned = c.cts.Context.Assigned
			c.role = c.newRole(c.assigned)
			c.mu.Unlock()
		}
		return nil
	}
	if err := role.HandleMessage(c.writer, c.logger, channel, mt); err != nil {
		return fmt.Errorf("roleclient: role: %w", err)
	}
	return nil
}
