package transport

import "fmt"

// Transport error codes (spec §6). Application error codes share the
// same 62-bit space but are opaque to the core.
const (
	NoError                  uint64 = 0x0
	InternalError            uint64 = 0x1
	ConnectionRefused        uint64 = 0x2
	ServerBusy               uint64 = 0x2
	FlowControlError         uint64 = 0x3
	StreamLimitError         uint64 = 0x4
	StreamStateError         uint64 = 0x5
	FinalSizeError           uint64 = 0x6
	FrameEncodingError       uint64 = 0x7
	TransportParameterError  uint64 = 0x8
	ConnectionIDLimitError   uint64 = 0x9
	ProtocolViolation        uint64 = 0xA
	InvalidToken             uint64 = 0xB
	InvalidMigration         uint64 = 0xC
	CryptoBufferExceeded     uint64 = 0xD
	cryptoErrorBase          uint64 = 0x100
)

// Error is a transport-level error, fatal to the whole connection unless
// it is returned from a context that only affects a single frame/packet.
type Error struct {
	Code   uint64
	Reason string
}

func newError(code uint64, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return errorCodeString(e.Code)
	}
	return fmt.Sprintf("%s: %s", errorCodeString(e.Code), e.Reason)
}

// IsCryptoError reports whether code is in the CRYPTO_ERROR range
// (0x100-0x1ff), reserved for the external crypto collaborator.
func IsCryptoError(code uint64) bool {
	return code >= cryptoErrorBase && code < cryptoErrorBase+0x100
}

func errorCodeString(code uint64) string {
	switch code {
	case NoError:
		return "no_error"
	case InternalError:
		return "internal_error"
	case ServerBusy:
		return "server_busy"
	case FlowControlError:
		return "flow_control_error"
	case StreamLimitError:
		return "stream_limit_error"
	case StreamStateError:
		return "stream_state_error"
	case FinalSizeError:
		return "final_size_error"
	case FrameEncodingError:
		return "frame_encoding_error"
	case TransportParameterError:
		return "transport_parameter_error"
	case ConnectionIDLimitError:
		return "connection_id_limit_error"
	case ProtocolViolation:
		return "protocol_violation"
	case InvalidToken:
		return "invalid_token"
	case InvalidMigration:
		return "invalid_migration"
	case CryptoBufferExceeded:
		return "crypto_buffer_exceeded"
	default:
		if IsCryptoError(code) {
			return fmt.Sprintf("crypto_error_%d", code-cryptoErrorBase)
		}
		return fmt.Sprintf("error_0x%x", code)
	}
}

var (
	errShortBuffer    = newError(InternalError, "short buffer")
	errInvalidToken   = newError(InvalidToken, "invalid retry token")
	errFlowControl    = newError(FlowControlError, "flow control")
	errInvalidVarInt  = newError(FrameEncodingError, "invalid varint")
	errInvalidPacket  = newError(ProtocolViolation, "invalid packet")
)
