// Package transport wraps raw byte streams (serial ports, TCP sockets) in
// the frame codec and typed message model. It has no transmission queue of
// its own: FramedWriter writes straight to the underlying stream, and the
// shared single-writer queue lives in internal/busswitch.
package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/kstaniek/spa-gateway/internal/frame"
	"github.com/kstaniek/spa-gateway/internal/protocol"
	"github.com/kstaniek/spa-gateway/internal/protoerr"
)

const readBufSize = 32

// FramedReader decodes Messages off an underlying byte stream one frame at
// a time.
type FramedReader struct {
	r       io.Reader
	decoder *frame.Decoder
	buf     [readBufSize]byte
}

// NewFramedReader wraps r with a fresh frame decoder.
func NewFramedReader(r io.Reader) *FramedReader {
	return &FramedReader{r: r, decoder: frame.NewDecoder()}
}

// NextMessage blocks until a complete Message has been decoded from the
// stream, or the stream errors out (including io.EOF, which is reported as
// protoerr.ErrUnexpectedEOF since a mid-frame EOF is never expected on a
// live bus connection).
func (f *FramedReader) NextMessage() (protocol.Message, error) {
	for {
		n, err := f.r.Read(f.buf[:])
		if n == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return protocol.Message{}, protoerr.ErrUnexpectedEOF
			}
			return protocol.Message{}, fmt.Errorf("transport: read: %w", err)
		}
		for _, b := range f.buf[:n] {
			if body := f.decoder.PushByte(b); body != nil {
				return protocol.DecodeMessage(body)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return protocol.Message{}, protoerr.ErrUnexpectedEOF
			}
			return protocol.Message{}, fmt.Errorf("transport: read: %w", err)
		}
	}
}

// FramesWithErrors reports how many times the underlying decoder has had to
// resynchronize after a malformed frame.
func (f *FramedReader) FramesWithErrors() int { return f.decoder.FramesWithErrors() }

// FramedWriter encodes and writes Messages onto an underlying byte stream.
type FramedWriter struct {
	w io.Writer
}

// NewFramedWriter wraps w for message-level writes.
func NewFramedWriter(w io.Writer) *FramedWriter {
	return &FramedWriter{w: w}
}

// Write serializes m and writes it in full.
func (f *FramedWriter) Write(m protocol.Message) error {
	body, err := m.EncodeBody()
	if err != nil {
		return err
	}
	if len(body) < 4 {
		return protoerr.ErrInvalidPayloadLength
	}
	encoded, err := frame.Encode(body[1], m.Channel.IsMulticastBroadcast(), body[3], body[4:])
	if err != nil {
		return err
	}
	if _, err := f.w.Write(encoded); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	// A buffered writer (busswitch.LogicalTransport) must
	// commit the frame now so the reply is on the wire before the next
	// CTS window opens.
	if fl, ok := f.w.(Flusher); ok {
		if err := fl.Flush(); err != nil {
			return fmt.Errorf("transport: flush: %w", err)
		}
	}
	return nil
}
