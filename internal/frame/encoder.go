package frame

import "github.com/kstaniek/spa-gateway/internal/protoerr"

// MaxPayloadLen is the largest payload the wire format can carry; the
// length byte is payload.len()+5, capped at 251.
const MaxPayloadLen = 246

const (
	magicBroadcast = 0xAF
	magicOther     = 0xBF
)

// Encode serializes channel/messageType/payload into a full wire frame:
// SOF, len, channel, magic, type, payload, crc8, EOF.
func Encode(channelByte byte, isBroadcast bool, messageType byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, protoerr.ErrMessageTooLong
	}
	length := len(payload) + 5
	magic := byte(magicOther)
	if isBroadcast {
		magic = magicBroadcast
	}

	msg := make([]byte, 0, length)
	msg = append(msg, byte(length), channelByte, magic, messageType)
	msg = append(msg, payload...)

	out := make([]byte, 0, length+3)
	out = append(out, sofByte)
	out = append(out, msg...)
	out = append(out, CRC8(msg), eofByte)
	return out, nil
}
