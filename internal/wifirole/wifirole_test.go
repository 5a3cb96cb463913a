package wifirole

import (
	"testing"

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

func TestWifirole_RelaysNonCtsTrafficToIP(t *testing.T) {
	ch, _ := protocol.NewClientChannel(0)
	m := New(ch)
	w := &captureWriter{}
	var logger discardLogger

	if err := m.HandleMessage(w, logger, ch, protocol.MessageType{Kind: protocol.KindStatusUpdate}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	relayed := m.Context.DrainRelay()
	if len(relayed) != 1 {
		t.Fatalf("expected 1 relayed message, got %d", len(relayed))
	}
	if relayed[0].MessageType != byte(protocol.KindStatusUpdate) {
		t.Fatalf("got type %v, want StatusUpdate", relayed[0].MessageType)
	}
	if len(w.msgs) != 0 {
		t.Fatalf("expected no bus reply for a relayed message, got %d", len(w.msgs))
	}
}

func TestWifirole_SendsQueuedOutboundOnClearToSend(t *testing.T) {
	ch, _ := protocol.NewClientChannel(0)
	m := New(ch)
	w := &captureWriter{}
	var logger discardLogger

	m.Context.Enqueue(protocol.MessageType{Kind: protocol.KindExistingClientRequest})
	if err := m.HandleMessage(w, logger, ch, protocol.MessageType{Kind: protocol.KindClearToSend}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(w.msgs))
	}
	got, _ := protocol.DecodeMessageType(w.msgs[0])
	if got.Kind != protocol.KindExistingClientRequest {
		t.Fatalf("got %v, want queued ExistingClientRequest", got.Kind)
	}

	if err := m.HandleMessage(w, logger, ch, protocol.MessageType{Kind: protocol.KindClearToSend}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	last, _ := protocol.DecodeMessageType(w.msgs[len(w.msgs)-1])
	if last.Kind != protocol.KindNothingToSend {
		t.Fatalf("got %v, want NothingToSend once queue drained", last.Kind)
	}
}
