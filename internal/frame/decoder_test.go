package frame

import (
	"bytes"
	"testing"
)

// Reference vector: a
// ChannelAssignmentAck on the multicast-channel-assignment channel (0xFE),
// message type 0x01, payload [0x02, 0xF2, 0x47].
var happyPathFrame = []byte{0x7E, 0x08, 0xFE, 0xBF, 0x01, 0x02, 0xF2, 0x47, 0x0A, 0x7E}

func TestDecoderHappyPath(t *testing.T) {
	d := NewDecoder()
	var got []byte
	for i, b := range happyPathFrame {
		msg := d.PushByte(b)
		if i < len(happyPathFrame)-1 {
			if msg != nil {
				t.Fatalf("unexpected early message at byte %d", i)
			}
			continue
		}
		got = msg
	}
	want := []byte{0x08, 0xFE, 0xBF, 0x01, 0x02, 0xF2, 0x47}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
	if d.State() != Ready {
		t.Fatalf("decoder should return to Ready, got %s", d.State())
	}
	if d.FramesWithErrors() != 0 {
		t.Fatalf("expected 0 errors, got %d", d.FramesWithErrors())
	}
}

func TestDecoderCrcRecovery(t *testing.T) {
	d := NewDecoder()
	// Wrong CRC byte (0xFF instead of the correct value).
	bad := []byte{0x7E, 0x05, 0xFE, 0xBF, 0x01, 0xFF}
	for _, b := range bad {
		if msg := d.PushByte(b); msg != nil {
			t.Fatalf("expected no message from malformed frame, got %x", msg)
		}
	}
	if d.FramesWithErrors() != 1 {
		t.Fatalf("expected 1 error, got %d", d.FramesWithErrors())
	}

	// Now feed a boundary EOF (so LostPlace -> LostPlaceGotEnd) followed by
	// a valid frame; the decoder must recover and emit it without
	// incrementing the error counter again.
	d.PushByte(eofByte)
	var got []byte
	for _, b := range happyPathFrame {
		if msg := d.PushByte(b); msg != nil {
			got = msg
		}
	}
	want := []byte{0x08, 0xFE, 0xBF, 0x01, 0x02, 0xF2, 0x47}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
	if d.FramesWithErrors() != 1 {
		t.Fatalf("error counter must remain 1 after recovery, got %d", d.FramesWithErrors())
	}
}

func TestDecoderRegainedStream(t *testing.T) {
	d := NewDecoder()
	// Garbage bytes (dropped in Ready), a SOF followed by an invalid length
	// byte that enters LostPlace, then the EOF/SOF boundary pair needed to
	// resynchronize mid-stream.
	garbage := []byte{0x01, 0x02, 0x03, eofByte, 0x04, sofByte, sofByte}
	for _, b := range garbage {
		d.PushByte(b)
	}
	if d.State() != GotStart {
		t.Fatalf("expected GotStart after the EOF/SOF boundary pair, got %s", d.State())
	}
	if d.FramesWithErrors() != 1 {
		t.Fatalf("expected exactly 1 recorded error, got %d", d.FramesWithErrors())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0xAA}
	enc, err := Encode(0xFF, true, 0x13, payload)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x7E, 0x06, 0xFF, 0xAF, 0x13, 0xAA}
	if !bytes.Equal(enc[:len(want)], want) {
		t.Fatalf("got %x want prefix %x", enc, want)
	}

	d := NewDecoder()
	var got []byte
	for _, b := range enc {
		if msg := d.PushByte(b); msg != nil {
			got = msg
		}
	}
	wantMsg := []byte{0x06, 0xFF, 0xAF, 0x13, 0xAA}
	if !bytes.Equal(got, wantMsg) {
		t.Fatalf("decoded %x want %x", got, wantMsg)
	}
	if d.State() != Ready {
		t.Fatalf("decoder must return to Ready, got %s", d.State())
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	payload := make([]byte, MaxPayloadLen+1)
	if _, err := Encode(0x10, false, 0x01, payload); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestRingBufferDropCounting(t *testing.T) {
	r := NewRingBuffer(4)
	for i := byte(0); i < 10; i++ {
		r.Push(i)
	}
	if r.Len() != 4 {
		t.Fatalf("expected length 4, got %d", r.Len())
	}
	if r.DroppedCount() != 6 {
		t.Fatalf("expected 6 dropped, got %d", r.DroppedCount())
	}
	want := []byte{6, 7, 8, 9}
	if !bytes.Equal(r.Snapshot(), want) {
		t.Fatalf("got %x want %x", r.Snapshot(), want)
	}
}
