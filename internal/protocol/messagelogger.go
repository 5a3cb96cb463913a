package protocol

import "github.com/kstaniek/spa-gateway/internal/logging"

// MessageDirection distinguishes inbound from outbound traffic in logs.
type MessageDirection int

const (
	Inbound MessageDirection = iota
	Outbound
)

func (d MessageDirection) arrow() string {
	if d == Inbound {
		return "<="
	}
	return "=>"
}

// chattyKinds log at Debug; everything else logs at Info. These
// high-frequency bus-arbitration kinds would otherwise drown the log.
var chattyKinds = map[MessageTypeKind]bool{
	KindNewClientClearToSend: true,
	KindClearToSend:          true,
	KindStatusUpdate:         true,
	KindNothingToSend:        true,
}

// MessageLogger logs every message that passes through a component.
// Satisfied by the logger returned from NewMessageLogger, and by test
// doubles that only need to implement Log.
type MessageLogger interface {
	Log(direction MessageDirection, m Message)
}

// defaultMessageLogger logs every message that passes through a component
// at a level appropriate to how chatty that message kind normally is.
type defaultMessageLogger struct {
	debugName string
}

// NewMessageLogger names the log source, e.g. "mainboard" or "topside".
func NewMessageLogger(debugName string) MessageLogger {
	return defaultMessageLogger{debugName: debugName}
}

// Log records one message transit.
func (l defaultMessageLogger) Log(direction MessageDirection, m Message) {
	log := logging.L().With("component", l.debugName)
	if chattyKinds[MessageTypeKind(m.MessageType)] {
		log.Debug("message", "dir", direction.arrow(), "type", m.MessageType, "channel", m.Channel.String())
		return
	}
	log.Info("message", "dir", direction.arrow(), "type", m.MessageType, "channel", m.Channel.String())
}
