package frame

import (
	"bytes"
	"testing"
)

// FuzzDecoder feeds arbitrary byte streams to the decoder and checks the
// resynchronization invariants: it never panics, never yields a message
// shorter than the minimum wire length, and any message it does yield has
// an internally consistent length byte.
func FuzzDecoder(f *testing.F) {
	f.Add(happyPathFrame)
	f.Add([]byte{0x7E, 0x05, 0xFE, 0xBF, 0x01, 0xFF})
	f.Add([]byte{0x7E, 0x7E, 0x7E})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		d := NewDecoder()
		for _, msg := range d.Push(data) {
			if len(msg) < minLength-1 {
				t.Fatalf("decoder yielded %d-byte message, min is %d", len(msg), minLength-1)
			}
			if int(msg[0]) != len(msg)+1 {
				t.Fatalf("length byte %d inconsistent with %d message bytes", msg[0], len(msg))
			}
		}
	})
}

// FuzzEncodeDecodeRoundTrip checks that anything the encoder accepts, the
// decoder reproduces byte for byte.
func FuzzEncodeDecodeRoundTrip(f *testing.F) {
	f.Add(byte(0x10), false, byte(0x13), []byte{0xAA})
	f.Add(byte(0xFF), true, byte(0x13), []byte{})

	f.Fuzz(func(t *testing.T, channel byte, broadcast bool, messageType byte, payload []byte) {
		enc, err := Encode(channel, broadcast, messageType, payload)
		if err != nil {
			if len(payload) > MaxPayloadLen {
				return
			}
			t.Fatalf("encode rejected valid payload: %v", err)
		}
		if len(payload)+5 >= int(eofByte) {
			// The length byte would reach the frame delimiter value, which
			// the decoder rejects in GotStart.
			return
		}
		d := NewDecoder()
		msgs := d.Push(enc)
		if len(msgs) != 1 {
			t.Fatalf("expected 1 decoded message, got %d", len(msgs))
		}
		if !bytes.Equal(msgs[0][4:], payload) {
			t.Fatalf("payload corrupted: got %x want %x", msgs[0][4:], payload)
		}
		if msgs[0][1] != channel || msgs[0][3] != messageType {
			t.Fatalf("header corrupted: %x", msgs[0][:4])
		}
	})
}

func BenchmarkEncode(b *testing.B) {
	payload := []byte{0x02, 0xF2, 0x47}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(0xFE, false, 0x01, payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecoder(b *testing.B) {
	b.ReportAllocs()
	d := NewDecoder()
	for i := 0; i < b.N; i++ {
		if msgs := d.Push(happyPathFrame); len(msgs) != 1 {
			b.Fatalf("expected 1 message, got %d", len(msgs))
		}
	}
}
