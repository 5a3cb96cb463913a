package roleclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/kstaniek/spa-gateway/internal/allocbroker"
	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/transport"
	"github.com/kstaniek/spa-gateway/internal/wifirole"
)

// TestHandshakeThenRelay drives a Client over an in-memory pipe against a
// hand-rolled main-board stub, exercising the client handshake
// through the generic composition instead of a role-specific
// test double, then confirms the steady-state wifirole machine answers a
// ClearToSend with NothingToSend once negotiation completes.
func TestHandshakeThenRelay(t *testing.T) {
	clientConn, boardConn := net.Pipe()
	defer clientConn.Close()
	defer boardConn.Close()

	broker := allocbroker.New()
	client := New[wifirole.Kind, wifirole.Context](clientConn, broker, 0x05, wifirole.New, "test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	boardReader := transport.NewFramedReader(boardConn)
	boardWriter := transport.NewFramedWriter(boardConn)

	assignedChannel, ok := protocol.NewClientChannel(0)
	if !ok {
		t.Fatal("NewClientChannel(0) should succeed")
	}

	mustWrite(t, boardWriter, protocol.MulticastRequest, protocol.MessageType{Kind: protocol.KindNewClientClearToSend})

	msg, mt := mustRead(t, boardReader)
	if mt.Kind != protocol.KindChannelAssignmentRequest {
		t.Fatalf("expected ChannelAssignmentRequest, got %v", mt.Kind)
	}
	if !msg.Channel.Equal(protocol.MulticastRequest) {
		t.Fatalf("expected request on MulticastRequest, got %v", msg.Channel)
	}
	clientHash := mt.ClientHash

	mustWrite(t, boardWriter, protocol.MulticastRequest, protocol.MessageType{
		Kind:       protocol.KindChannelAssignmentResponse,
		Channel:    assignedChannel,
		ClientHash: clientHash,
	})

	_, mt = mustRead(t, boardReader)
	if mt.Kind != protocol.KindChannelAssignmentAck {
		t.Fatalf("expected ChannelAssignmentAck, got %v", mt.Kind)
	}

	deadline := time.Now().Add(time.Second)
	for {
		if ch, ok := client.Channel(); ok {
			if !ch.Equal(assignedChannel) {
				t.Fatalf("assigned channel = %v, want %v", ch, assignedChannel)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for channel assignment")
		}
		time.Sleep(time.Millisecond)
	}

	mustWrite(t, boardWriter, assignedChannel, protocol.MessageType{Kind: protocol.KindClearToSend})
	_, mt = mustRead(t, boardReader)
	if mt.Kind != protocol.KindNothingToSend {
		t.Fatalf("expected NothingToSend, got %v", mt.Kind)
	}

	if client.Role().StateKind() != wifirole.KindRelaying {
		t.Fatalf("role state = %v, want KindRelaying", client.Role().StateKind())
	}

	cancel()
	clientConn.Close()
	<-runErr
}

func mustWrite(t *testing.T, w *transport.FramedWriter, channel protocol.Channel, mt protocol.MessageType) {
	t.Helper()
	msg, err := mt.ToMessage(channel)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := w.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func mustRead(t *testing.T, r *transport.FramedReader) (protocol.Message, protocol.MessageType) {
	t.Helper()
	msg, err := r.NextMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	mt, err := protocol.DecodeMessageType(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg, mt
}
