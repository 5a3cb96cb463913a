package ctssm

import (
	"testing"

	"github.com/kstaniek/spa-gateway/internal/allocbroker"
	"github.com/kstaniek/spa-gateway/internal/protocol"
)

type captureWriter struct {
	msgs []protocol.Message
}

func (c *captureWriter) Write(m protocol.Message) error {
	c.msgs = append(c.msgs, m)
	return nil
}

type discardLogger struct{}

func (discardLogger) Log(protocol.MessageDirection, protocol.Message) {}

func TestCtssm_FullHandshake(t *testing.T) {
	broker := allocbroker.New()
	ctx := Context{DeviceType: 0x02, ClientHash: 0xCAFE}
	m := New(ctx, broker)
	w := &captureWriter{}
	var logger discardLogger

	if err := m.HandleMessage(w, logger, protocol.MulticastRequest, protocol.MessageType{Kind: protocol.KindNewClientClearToSend}); err != nil {
		t.Fatalf("NewClientClearToSend: %v", err)
	}
	if m.StateKind() != KindWaitingForChannelAssignment {
		t.Fatalf("state = %v, want WaitingForChannelAssignment", m.StateKind())
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(w.msgs))
	}
	req, err := protocol.DecodeMessageType(w.msgs[0])
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Kind != protocol.KindChannelAssignmentRequest || req.DeviceType != 0x02 || req.ClientHash != 0xCAFE {
		t.Fatalf("got %+v", req)
	}

	assigned, _ := protocol.NewClientChannel(0)
	if err := m.HandleMessage(w, logger, protocol.MulticastRequest, protocol.MessageType{
		Kind:       protocol.KindChannelAssignmentResponse,
		Channel:    assigned,
		ClientHash: 0xCAFE,
	}); err != nil {
		t.Fatalf("ChannelAssignmentResponse: %v", err)
	}
	if m.StateKind() != KindChannelAssigned {
		t.Fatalf("state = %v, want ChannelAssigned", m.StateKind())
	}
	if !m.Context.HasChannel || !m.Context.Assigned.Equal(assigned) {
		t.Fatalf("context not updated: %+v", m.Context)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 replies total, got %d", len(w.msgs))
	}
	ack, err := protocol.DecodeMessageType(w.msgs[1])
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Kind != protocol.KindChannelAssignmentAck {
		t.Fatalf("got %+v, want ChannelAssignmentAck", ack)
	}
	if !w.msgs[1].Channel.Equal(assigned) {
		t.Fatalf("ack sent on %v, want %v", w.msgs[1].Channel, assigned)
	}
}

func TestCtssm_MismatchedHashIgnored(t *testing.T) {
	broker := allocbroker.New()
	m := New(Context{DeviceType: 0x02, ClientHash: 0xCAFE}, broker)
	w := &captureWriter{}
	var logger discardLogger

	_ = m.HandleMessage(w, logger, protocol.MulticastRequest, protocol.MessageType{Kind: protocol.KindNewClientClearToSend})
	w.msgs = nil

	other, _ := protocol.NewClientChannel(1)
	_ = m.HandleMessage(w, logger, protocol.MulticastRequest, protocol.MessageType{
		Kind:       protocol.KindChannelAssignmentResponse,
		Channel:    other,
		ClientHash: 0xBEEF,
	})
	if m.StateKind() != KindWaitingForChannelAssignment {
		t.Fatalf("state = %v, want still WaitingForChannelAssignment", m.StateKind())
	}
	if len(w.msgs) != 0 {
		t.Fatalf("expected no reply for mismatched hash, got %d", len(w.msgs))
	}
}

func TestCtssm_BrokerContention_SecondClientYields(t *testing.T) {
	broker := allocbroker.New()
	a := New(Context{DeviceType: 0x02, ClientHash: 0x1}, broker)
	b := New(Context{DeviceType: 0x03, ClientHash: 0x2}, broker)
	wa, wb := &captureWriter{}, &captureWriter{}
	var logger discardLogger

	_ = a.HandleMessage(wa, logger, protocol.MulticastRequest, protocol.MessageType{Kind: protocol.KindNewClientClearToSend})
	_ = b.HandleMessage(wb, logger, protocol.MulticastRequest, protocol.MessageType{Kind: protocol.KindNewClientClearToSend})

	if len(wa.msgs) != 1 {
		t.Fatalf("expected a to win the broker and reply once, got %d", len(wa.msgs))
	}
	if len(wb.msgs) != 0 {
		t.Fatalf("expected b to yield without replying, got %d", len(wb.msgs))
	}
	if b.StateKind() != KindWaitingForNewClientCTS {
		t.Fatalf("b state = %v, want still WaitingForNewClientCTS", b.StateKind())
	}
}
