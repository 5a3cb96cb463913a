package frame

const (
	sofByte = 0x7E
	eofByte = 0x7E
	// minLength is the smallest valid wire length byte: a zero-payload
	// message still carries len+channel+magic+type = 4 header bytes plus
	// the CRC byte, i.e. len = payload.len()+5 with payload.len()==0.
	minLength = 5
)

// State names the decoder's FSM state.
type State int

const (
	Ready State = iota
	GotStart
	GotLength
	GotMessage
	GotCrc
	LostPlace
	LostPlaceGotEnd
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case GotStart:
		return "GotStart"
	case GotLength:
		return "GotLength"
	case GotMessage:
		return "GotMessage"
	case GotCrc:
		return "GotCrc"
	case LostPlace:
		return "LostPlace"
	case LostPlaceGotEnd:
		return "LostPlaceGotEnd"
	default:
		return "Unknown"
	}
}

// maxErrorSample bounds the diagnostic ring buffer retained while the
// decoder is resynchronizing after corruption.
const maxErrorSample = 32

// Decoder is a streaming, byte-at-a-time frame decoder. It is not safe for
// concurrent use; each logical peer owns exactly one.
type Decoder struct {
	state State

	buf      []byte // accumulated [len, channel, magic, type, payload...]
	expected int    // remaining bytes to accumulate in GotLength

	framesWithErrors int
	errSample        *RingBuffer
}

// NewDecoder returns a Decoder in the Ready state.
func NewDecoder() *Decoder {
	return &Decoder{
		state:     Ready,
		errSample: NewRingBuffer(maxErrorSample),
	}
}

// State returns the decoder's current FSM state.
func (d *Decoder) State() State { return d.state }

// FramesWithErrors returns the number of times the decoder has entered
// LostPlace from a non-error state.
func (d *Decoder) FramesWithErrors() int { return d.framesWithErrors }

// ErrorSample returns a snapshot of the most recent bytes seen while
// resynchronizing, for diagnostic logging.
func (d *Decoder) ErrorSample() []byte { return d.errSample.Snapshot() }

// PushByte feeds one byte into the decoder. It returns a decoded message
// bytes (still wire-encoded: [len, channel, magic, type, payload...]) when
// a complete, CRC-valid frame has just been recognized; otherwise msg is
// nil.
func (d *Decoder) PushByte(b byte) (msg []byte) {
	switch d.state {
	case Ready:
		if b == sofByte {
			d.buf = d.buf[:0]
			d.state = GotStart
		}
		// else: drop.

	case GotStart:
		if b >= minLength && b < eofByte {
			d.expected = int(b) - 2
			d.buf = append(d.buf, b)
			d.state = GotLength
		} else {
			d.enterLostPlace()
		}

	case GotLength:
		d.buf = append(d.buf, b)
		d.expected--
		if d.expected <= 0 {
			d.state = GotMessage
		}

	case GotMessage:
		want := CRC8(d.buf)
		if b == want {
			d.state = GotCrc
		} else {
			d.enterLostPlace()
		}

	case GotCrc:
		if b == eofByte {
			out := make([]byte, len(d.buf))
			copy(out, d.buf)
			d.buf = d.buf[:0]
			d.state = Ready
			return out
		}
		d.enterLostPlace()

	case LostPlace:
		if b == eofByte {
			d.state = LostPlaceGotEnd
		} else {
			d.errSample.Push(b)
		}

	case LostPlaceGotEnd:
		if b == sofByte {
			d.buf = d.buf[:0]
			d.state = GotStart
		} else {
			d.state = LostPlace
			d.errSample.Push(b)
		}
	}
	return nil
}

func (d *Decoder) enterLostPlace() {
	d.framesWithErrors++
	d.buf = d.buf[:0]
	d.errSample.Reset()
	d.state = LostPlace
}

// Push feeds a full byte slice into the decoder, returning every complete
// message recognized along the way. Messages are returned in the order
// they were decoded.
func (d *Decoder) Push(data []byte) [][]byte {
	var out [][]byte
	for _, b := range data {
		if msg := d.PushByte(b); msg != nil {
			out = append(out, msg)
		}
	}
	return out
}
