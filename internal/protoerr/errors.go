// Package protoerr defines the sentinel error taxonomy shared by every
// protocol-engine package, mirroring the error kinds a caller needs to
// distinguish to decide whether to retry, reconnect, or halt.
package protoerr

import "errors"

// Engine-level errors.
var (
	// ErrFatal halts the engine; e.g. irrecoverable I/O.
	ErrFatal = errors.New("fatal error")
	// ErrClientNeedsReconnect means the peer lost CTS authorization or sent
	// on an unallocated channel; it must renegotiate from scratch.
	ErrClientNeedsReconnect = errors.New("client needs reconnect")
	// ErrClientRecoverable is transient; the peer may retry the last request.
	ErrClientRecoverable = errors.New("client recoverable error")
	// ErrClientUnsupported means the peer sent a message this build cannot
	// parse or act on; it is logged and ignored.
	ErrClientUnsupported = errors.New("client unsupported message")
	// ErrShutdownRequested is the cooperative shutdown sentinel.
	ErrShutdownRequested = errors.New("shutdown requested")
)

// Decoder/codec-local errors.
var (
	ErrInvalidPayloadLength = errors.New("invalid payload length")
	ErrInvalidMessageType   = errors.New("invalid message type")
	ErrCrcMismatch          = errors.New("crc mismatch")
	ErrMessageTooLong       = errors.New("message too long")
	ErrUnexpectedEOF        = errors.New("unexpected eof")
	ErrNotSupported         = errors.New("not supported")
)

// Classify maps an error to a short label suitable for a Prometheus metric
// or a structured log field.
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrFatal):
		return "fatal"
	case errors.Is(err, ErrClientNeedsReconnect):
		return "client_needs_reconnect"
	case errors.Is(err, ErrClientRecoverable):
		return "client_recoverable"
	case errors.Is(err, ErrClientUnsupported):
		return "client_unsupported"
	case errors.Is(err, ErrShutdownRequested):
		return "shutdown_requested"
	case errors.Is(err, ErrInvalidPayloadLength):
		return "invalid_payload_length"
	case errors.Is(err, ErrInvalidMessageType):
		return "invalid_message_type"
	case errors.Is(err, ErrCrcMismatch):
		return "crc_mismatch"
	case errors.Is(err, ErrMessageTooLong):
		return "message_too_long"
	case errors.Is(err, ErrUnexpectedEOF):
		return "unexpected_eof"
	case errors.Is(err, ErrNotSupported):
		return "not_supported"
	default:
		return "other"
	}
}
