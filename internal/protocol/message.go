package protocol

import "github.com/kstaniek/spa-gateway/internal/protoerr"

// Message is the decoded envelope `{channel, message_type, payload}`.
type Message struct {
	Channel     Channel
	MessageType byte
	Payload     []byte
}

// NewMessage constructs a Message.
func NewMessage(channel Channel, messageType byte, payload []byte) Message {
	return Message{Channel: channel, MessageType: messageType, Payload: payload}
}

// DecodeMessage parses the wire-encoded body produced by the frame decoder:
// [len, channel, magic, type, payload...]. The SOF/CRC/EOF framing bytes
// have already been stripped and validated by the frame package.
func DecodeMessage(body []byte) (Message, error) {
	if len(body) < 4 {
		return Message{}, protoerr.ErrUnexpectedEOF
	}
	length := int(body[0])
	if length < 5 {
		return Message{}, protoerr.ErrInvalidPayloadLength
	}
	if len(body) != length-1 {
		// length counts the CRC byte too, which is stripped before we get
		// here, so body (len, channel, magic, type, payload) is length-1.
		return Message{}, protoerr.ErrInvalidPayloadLength
	}
	channel := ChannelFromByte(body[1])
	// body[2] is the magic byte; it is derivable from the channel and is
	// not retained on the decoded Message (it is recomputed on encode).
	messageType := body[3]
	payload := append([]byte(nil), body[4:]...)
	return Message{Channel: channel, MessageType: messageType, Payload: payload}, nil
}

// EncodeBody serializes the Message back into the [len, channel, magic,
// type, payload...] form consumed by the frame encoder.
func (m Message) EncodeBody() ([]byte, error) {
	if len(m.Payload) > 246 {
		return nil, protoerr.ErrMessageTooLong
	}
	length := len(m.Payload) + 5
	magic := byte(0xBF)
	if m.Channel.IsMulticastBroadcast() {
		magic = 0xAF
	}
	out := make([]byte, 0, length)
	out = append(out, byte(length), m.Channel.Byte(), magic, m.MessageType)
	out = append(out, m.Payload...)
	return out, nil
}
