package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/spa-gateway/internal/bfanout"
	"github.com/kstaniek/spa-gateway/internal/logging"
	"github.com/kstaniek/spa-gateway/internal/metrics"
	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/transport"
)

// RelayPort is the fixed TCP port the frame relay listens on.
const RelayPort = 4257

// relayReadTimeout is the inactivity timeout on an accepted connection.
const relayReadTimeout = 120 * time.Second

// injectedMessage carries one IP-origin frame from a relay connection's
// reader goroutine into the Runtime's single event-handler loop.
type injectedMessage struct {
	mt protocol.MessageType
}

// runRelay accepts connections on listenAddr until ctx is canceled. Each
// connection gets a reader goroutine (decodes frames, forwards them to
// injected) and a writer goroutine (drains a relayHub subscription and
// writes framed messages out).
func runRelay(ctx context.Context, listenAddr string, relayHub *bfanout.Hub[protocol.Message], injected chan<- injectedMessage) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("gateway: tcp relay listen: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	log := logging.L().With("component", "gateway_relay")
	log.Info("relay_listening", "addr", listenAddr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Error("relay_accept_error", "error", err)
			return fmt.Errorf("gateway: tcp relay accept: %w", err)
		}
		log.Info("relay_client_connected", "peer", conn.RemoteAddr().String())
		go serveRelayConn(ctx, conn, relayHub, injected, log)
	}
}

func serveRelayConn(
	ctx context.Context,
	conn net.Conn,
	relayHub *bfanout.Hub[protocol.Message],
	injected chan<- injectedMessage,
	log *slog.Logger,
) {
	sub := relayHub.Subscribe()
	defer relayHub.Unsubscribe(sub)

	connDone := make(chan struct{})
	go runRelayWriter(conn, sub, connDone)

	runRelayReader(ctx, conn, injected, log)
	_ = conn.Close()
	<-connDone
}

// runRelayReader is the per-connection reader goroutine: it decodes framed
// messages off the TCP stream and forwards each to the shared injected
// channel, where the single event-handler loop picks it up.
func runRelayReader(ctx context.Context, conn net.Conn, injected chan<- injectedMessage, log *slog.Logger) {
	fr := transport.NewFramedReader(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(relayReadTimeout))
		msg, err := fr.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.Warn("relay_read_timeout", "peer", conn.RemoteAddr().String())
				return
			}
			metrics.IncError(metrics.ErrTCPRead)
			log.Error("relay_read_error", "error", err, "peer", conn.RemoteAddr().String())
			return
		}
		metrics.IncTCPRx()
		mt, err := protocol.DecodeMessageType(msg)
		if err != nil {
			metrics.IncMalformed()
			continue
		}
		select {
		case injected <- injectedMessage{mt: mt}:
		case <-ctx.Done():
			return
		}
	}
}

// runRelayWriter is the per-connection writer goroutine: it drains sub
// (fed by the Runtime's event loop pushing mainboard-origin traffic onto
// relayHub) and writes each message framed to conn.
func runRelayWriter(conn net.Conn, sub *bfanout.Subscriber[protocol.Message], done chan<- struct{}) {
	defer close(done)
	fw := transport.NewFramedWriter(conn)
	for {
		select {
		case msg, ok := <-sub.Out:
			if !ok {
				return
			}
			if err := fw.Write(msg); err != nil {
				return
			}
			metrics.AddTCPTx(1)
		case <-sub.Closed:
			return
		}
	}
}
