// Package protocol implements the typed message model: channels, the
// Message envelope, the raw-preserving enum primitive, and the full closed
// MessageType sum with per-variant wire encode/decode.
package protocol

import "fmt"

// Channel identifies a logical peer on the bus.
type Channel struct {
	kind channelKind
	raw  byte
}

type channelKind int

const (
	channelReserved channelKind = iota
	channelClient
	channelClientNoCTS
	channelMulticastRequest
	channelMulticastBroadcast
	channelUnknown
)

const (
	reservedByte           = 0x0A
	clientRangeStart       = 0x10
	clientRangeEnd         = 0x2F
	clientNoCTSRangeStart  = 0x30
	clientNoCTSRangeEnd    = 0x3F
	multicastRequestByte   = 0xFE
	multicastBroadcastByte = 0xFF
)

// NumClientChannels is the size of the CTS-eligible client channel range
// (0x10..0x2F).
const NumClientChannels = clientRangeEnd - clientRangeStart + 1

// Reserved is the bus-reserved channel (0x0A).
var Reserved = Channel{kind: channelReserved, raw: reservedByte}

// MulticastRequest is the channel new clients address their
// ChannelAssignmentRequest negotiation to (0xFE).
var MulticastRequest = Channel{kind: channelMulticastRequest, raw: multicastRequestByte}

// MulticastBroadcast is the channel used for broadcast traffic, e.g.
// StatusUpdate (0xFF).
var MulticastBroadcast = Channel{kind: channelMulticastBroadcast, raw: multicastBroadcastByte}

// ChannelFromByte parses the wire channel byte into a Channel value,
// classifying it by range. Unknown bytes are preserved as Unknown(raw).
func ChannelFromByte(b byte) Channel {
	switch {
	case b == reservedByte:
		return Channel{kind: channelReserved, raw: b}
	case b >= clientRangeStart && b <= clientRangeEnd:
		return Channel{kind: channelClient, raw: b}
	case b >= clientNoCTSRangeStart && b <= clientNoCTSRangeEnd:
		return Channel{kind: channelClientNoCTS, raw: b}
	case b == multicastRequestByte:
		return Channel{kind: channelMulticastRequest, raw: b}
	case b == multicastBroadcastByte:
		return Channel{kind: channelMulticastBroadcast, raw: b}
	default:
		return Channel{kind: channelUnknown, raw: b}
	}
}

// NewClientChannel returns the nth sequential CTS-eligible client channel
// (index 0 => 0x10). ok is false if index overflows the client range.
func NewClientChannel(index int) (Channel, bool) {
	b := clientRangeStart + index
	if b > clientRangeEnd {
		return Channel{}, false
	}
	return Channel{kind: channelClient, raw: byte(b)}, true
}

// Byte returns the wire representation of the channel.
func (c Channel) Byte() byte { return c.raw }

// IsClient reports whether c is a CTS-eligible client channel (0x10..0x2F).
func (c Channel) IsClient() bool { return c.kind == channelClient }

// IsClientNoCTS reports whether c is a non-CTS client channel (0x30..0x3F).
func (c Channel) IsClientNoCTS() bool { return c.kind == channelClientNoCTS }

// IsMulticastBroadcast reports whether c is the broadcast channel (0xFF).
func (c Channel) IsMulticastBroadcast() bool { return c.kind == channelMulticastBroadcast }

// IsMulticastRequest reports whether c is the channel-assignment multicast
// channel (0xFE).
func (c Channel) IsMulticastRequest() bool { return c.kind == channelMulticastRequest }

// Equal compares channels by their raw wire byte, consistent with the
// raw-preserving-enum equality contract used throughout this protocol.
func (c Channel) Equal(other Channel) bool { return c.raw == other.raw }

func (c Channel) String() string {
	switch c.kind {
	case channelReserved:
		return "Reserved"
	case channelClient:
		return fmt.Sprintf("Client(0x%02X)", c.raw)
	case channelClientNoCTS:
		return fmt.Sprintf("ClientNoCTS(0x%02X)", c.raw)
	case channelMulticastRequest:
		return "MulticastRequest"
	case channelMulticastBroadcast:
		return "MulticastBroadcast"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", c.raw)
	}
}
