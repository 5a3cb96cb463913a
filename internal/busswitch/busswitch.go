// Package busswitch exposes one physical transport (e.g. an RS-485 serial
// port) as N independent logical transports, so co-located peers (topside
// panel, Wi-Fi module) can each run their own framed reader/writer against
// what looks like a private connection. The read side is a single reader
// goroutine broadcasting to bounded per-listener queues; the write side is
// a single writer goroutine that serializes physical writes and echoes
// them to every listener except the originator.
package busswitch

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kstaniek/spa-gateway/internal/bfanout"
	"github.com/kstaniek/spa-gateway/internal/logging"
	"github.com/kstaniek/spa-gateway/internal/metrics"
	"github.com/kstaniek/spa-gateway/internal/transport"
)

const (
	DefaultRecvBufferSize  = 128
	DefaultRecvQueueLen    = 8
	DefaultMaxWriteBufSize = 2048
)

// writeRequest funnels one logical transport's write onto the single
// writer goroutine, which serializes physical writes and echoes the bytes
// to every listener except the originator.
type writeRequest struct {
	data   []byte
	origin *bfanout.Subscriber[[]byte]
	ack    chan error
}

// Switch owns a physical Transport exclusively and multiplexes it into N
// logical transports. The read side is a broadcast fan-out; the write
// side is a single serializing goroutine.
type Switch struct {
	phys transport.Transport

	readBufSize int
	maxWriteBuf int
	hub         *bfanout.Hub[[]byte]

	writeCh chan writeRequest
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
}

// Option configures a Switch at construction time.
type Option func(*Switch)

// WithReadBufferSize overrides the reader's chunk size (default 128).
func WithReadBufferSize(n int) Option {
	return func(s *Switch) { s.readBufSize = n }
}

// WithQueueDepth overrides the per-listener queue depth (default 8).
func WithQueueDepth(n int) Option {
	return func(s *Switch) { s.hub.QueueDepth = n }
}

// WithMaxWriteBufferSize overrides the per-connection write buffer cap
// (default 2048).
func WithMaxWriteBufferSize(n int) Option {
	return func(s *Switch) { s.maxWriteBuf = n }
}

// New constructs a Switch over phys and starts its reader and writer
// goroutines. Call Close to stop both and release phys.
func New(phys transport.Transport, opts ...Option) *Switch {
	s := &Switch{
		phys:        phys,
		readBufSize: DefaultRecvBufferSize,
		maxWriteBuf: DefaultMaxWriteBufSize,
		hub:         bfanout.New[[]byte](DefaultRecvQueueLen, bfanout.PolicyKick),
		writeCh:     make(chan writeRequest, 16),
		done:        make(chan struct{}),
	}
	s.hub.OnDrop = func() { metrics.IncBusDrop() }
	s.hub.OnKick = func() { metrics.IncBusKick() }
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Attach registers a new logical transport sharing this Switch's physical
// connection.
func (s *Switch) Attach() *LogicalTransport {
	sub := s.hub.Subscribe()
	metrics.SetBusClients(s.hub.Count())
	return &LogicalTransport{sw: s, sub: sub}
}

// detach deregisters a logical transport's subscription.
func (s *Switch) detach(sub *bfanout.Subscriber[[]byte]) {
	s.hub.Unsubscribe(sub)
	metrics.SetBusClients(s.hub.Count())
}

// Close stops the reader and writer goroutines and closes the physical
// transport if it is a Closer.
func (s *Switch) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if c, ok := s.phys.(io.Closer); ok {
			err = c.Close()
		}
		s.wg.Wait()
	})
	return err
}

// readLoop is the sole reader thread: it fills a buffer from the physical
// transport and broadcasts each slice to every attached listener.
func (s *Switch) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, s.readBufSize)
	for {
		n, err := s.phys.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.hub.Broadcast(chunk)
			metrics.SetBroadcastFanout(s.hub.Count())
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logging.L().Error("busswitch_read_error", "error", err)
			}
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
	}
}

// writeLoop is the sole writer thread: it serializes physical writes so no
// two logical transports interleave bytes, then echoes the written bytes
// to every listener except the originator (so a transmitter hears its own
// frames on the shared bus exactly once, matching real RS-485 semantics).
func (s *Switch) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.writeCh:
			_, err := s.phys.Write(req.data)
			if err == nil {
				err = transport.Flush(s.phys)
			}
			if err != nil {
				logging.L().Error("busswitch_write_error", "error", err)
			} else {
				s.hub.BroadcastExcept(req.data, req.origin)
			}
			req.ack <- err
		case <-s.done:
			return
		}
	}
}

// LogicalTransport is one multiplexed peer's view of the shared physical
// bus: reads drain its own broadcast subscription, writes accumulate in a
// bounded buffer until Flush commits them through the Switch's single
// writer goroutine.
type LogicalTransport struct {
	sw      *Switch
	sub     *bfanout.Subscriber[[]byte]
	pending []byte
	wbuf    []byte
}

// Read implements io.Reader, delivering bytes the Switch's reader
// broadcast to this listener, plus the write-loop's echo of every other
// listener's writes. It never sees an echo of this transport's own
// writes.
func (l *LogicalTransport) Read(p []byte) (int, error) {
	for len(l.pending) == 0 {
		select {
		case chunk, ok := <-l.sub.Out:
			if !ok {
				return 0, io.EOF
			}
			l.pending = chunk
		case <-l.sub.Closed:
			return 0, io.EOF
		}
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// ErrWriteBufferFull is returned when a logical transport accumulates more
// unflushed bytes than the Switch's per-connection cap.
var ErrWriteBufferFull = errors.New("busswitch: write buffer full")

// Write implements io.Writer by buffering data until the next Flush. The
// buffer is bounded; exceeding the cap fails the write rather than
// growing without limit.
func (l *LogicalTransport) Write(p []byte) (int, error) {
	if len(l.wbuf)+len(p) > l.sw.maxWriteBuf {
		return 0, ErrWriteBufferFull
	}
	l.wbuf = append(l.wbuf, p...)
	return len(p), nil
}

// Flush commits everything buffered since the last Flush through the
// Switch's single writer goroutine, serializing it against every other
// logical transport sharing this physical bus. Flushing nothing is a
// no-op.
func (l *LogicalTransport) Flush() error {
	if len(l.wbuf) == 0 {
		return nil
	}
	req := writeRequest{
		data:   l.wbuf,
		origin: l.sub,
		ack:    make(chan error, 1),
	}
	l.wbuf = nil
	select {
	case l.sw.writeCh <- req:
	case <-l.sw.done:
		return fmt.Errorf("busswitch: switch closed")
	}
	return <-req.ack
}

// Close deregisters this logical transport from the Switch; it does not
// affect the physical transport or other logical transports.
func (l *LogicalTransport) Close() error {
	l.sw.detach(l.sub)
	return nil
}
