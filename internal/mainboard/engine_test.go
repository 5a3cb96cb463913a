package mainboard

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/transport"
)

func TestEngine_ChannelAssignmentAndSettingsRequest(t *testing.T) {
	clientConn, engineConn := net.Pipe()
	defer clientConn.Close()
	defer engineConn.Close()

	engine := New(engineConn, WithInitDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- engine.Run(ctx) }()

	reader := transport.NewFramedReader(clientConn)
	writer := transport.NewFramedWriter(clientConn)

	req := protocol.MessageType{Kind: protocol.KindChannelAssignmentRequest, DeviceType: 0x02, ClientHash: 0xBEEF}
	msg, err := req.ToMessage(protocol.MulticastRequest)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	if err := writer.Write(msg); err != nil {
		t.Fatalf("write request: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	readUntil := func(want protocol.MessageTypeKind, onChannel *protocol.Channel) protocol.MessageType {
		t.Helper()
		for {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %v", want)
			}
			msg, err := reader.NextMessage()
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			mt, err := protocol.DecodeMessageType(msg)
			if err != nil {
				continue
			}
			if mt.Kind != want {
				continue
			}
			if onChannel != nil && !msg.Channel.Equal(*onChannel) {
				continue
			}
			return mt
		}
	}

	mt := readUntil(protocol.KindChannelAssignmentResponse, nil)
	if mt.ClientHash != 0xBEEF {
		t.Fatalf("expected echoed client hash, got %#x", mt.ClientHash)
	}
	assigned := mt.Channel

	// Traffic outside a grant window is a CTS violation, so wait for a
	// ClearToSend on the assigned channel before asking for anything.
	readUntil(protocol.KindClearToSend, &assigned)

	infoReq := protocol.MessageType{
		Kind:            protocol.KindSettingsRequest,
		SettingsRequest: protocol.SettingsRequestMessage{Kind: protocol.SettingsInformation},
	}
	infoMsg, err := infoReq.ToMessage(assigned)
	if err != nil {
		t.Fatalf("encode info request: %v", err)
	}
	if err := writer.Write(infoMsg); err != nil {
		t.Fatalf("write info request: %v", err)
	}

	infoMT := readUntil(protocol.KindInformationResponse, nil)
	if infoMT.Information.SystemModelNumber != "Mock Spa" {
		t.Fatalf("expected the mock device's model number, got %q", infoMT.Information.SystemModelNumber)
	}

	// The engine may be mid-write on a tick when the context is canceled;
	// closing the client side unblocks it.
	cancel()
	clientConn.Close()
	<-runDone
}

func TestEngine_CtsWindowExpiryEvictsChannel(t *testing.T) {
	clientConn, engineConn := net.Pipe()
	defer clientConn.Close()
	defer engineConn.Close()

	const window = 20 * time.Millisecond
	engine := New(engineConn,
		WithClearToSendWindow(window),
		WithMaxCTSFailures(2),
	)

	key := DeviceKey{DeviceType: 0x02, ClientHash: 0xCAFE}
	ch, err := engine.tracker.Allocate(key)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// Two ClearToSend grants, each answered only after the window expired.
	for i := 0; i < 2; i++ {
		engine.cts.Authorize(ch, time.Now().Add(-2*window))
		ev := event{kind: eventMessage, channel: ch, mt: protocol.MessageType{Kind: protocol.KindNothingToSend}}
		if err := engine.handleMessage(ev); err != nil {
			t.Fatalf("violation %d: %v", i+1, err)
		}
	}

	if engine.tracker.IsAllocated(ch) {
		t.Fatal("expected channel eviction after the second consecutive CTS violation")
	}
	if _, ok := engine.tracker.byDevice[key]; ok {
		t.Fatal("expected device mapping removed alongside the channel")
	}

	// Traffic on the now-removed channel is rejected without wedging the
	// engine: the handler returns nil and allocation state stays empty.
	ev := event{kind: eventMessage, channel: ch, mt: protocol.MessageType{Kind: protocol.KindNothingToSend}}
	if err := engine.handleMessage(ev); err != nil {
		t.Fatalf("post-eviction message: %v", err)
	}
	if engine.tracker.Count() != 0 {
		t.Fatalf("expected no allocated channels, got %d", engine.tracker.Count())
	}
}

func TestEngine_CtsAuthorizationAdmitsOneMessagePerGrant(t *testing.T) {
	clientConn, engineConn := net.Pipe()
	defer clientConn.Close()
	defer engineConn.Close()

	engine := New(engineConn, WithMaxCTSFailures(5))

	ch, err := engine.tracker.Allocate(DeviceKey{DeviceType: 0x02, ClientHash: 0xCAFE})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	engine.cts.Authorize(ch, time.Now())
	ev := event{kind: eventMessage, channel: ch, mt: protocol.MessageType{Kind: protocol.KindNothingToSend}}
	if err := engine.handleMessage(ev); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if got := engine.tracker.byChannel[ch].consecutiveCtsFailures; got != 0 {
		t.Fatalf("first message within the window recorded %d failures, want 0", got)
	}

	// Second message in the same window: the grant is spent, so this is a
	// violation even though the window has not elapsed.
	if err := engine.handleMessage(ev); err != nil {
		t.Fatalf("second message: %v", err)
	}
	if got := engine.tracker.byChannel[ch].consecutiveCtsFailures; got != 1 {
		t.Fatalf("second message in the same window recorded %d failures, want 1", got)
	}
}

func TestEngine_UnallocatedClientChannelIsRejected(t *testing.T) {
	clientConn, engineConn := net.Pipe()
	defer clientConn.Close()
	defer engineConn.Close()

	engine := New(engineConn, WithInitDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- engine.Run(ctx) }()

	writer := transport.NewFramedWriter(clientConn)
	unallocated, _ := protocol.NewClientChannel(0)
	req := protocol.MessageType{Kind: protocol.KindClearToSend}
	msg, err := req.ToMessage(unallocated)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := writer.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	// No channel was ever allocated, so the engine must not crash or hang;
	// give it a beat to process, then confirm Run is still alive.
	time.Sleep(20 * time.Millisecond)
	select {
	case err := <-runDone:
		t.Fatalf("engine exited unexpectedly: %v", err)
	default:
	}
	cancel()
	clientConn.Close()
	<-runDone
}
