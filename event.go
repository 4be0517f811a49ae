package quic

import "github.com/goburrow/quic/transport"

// Connection-lifecycle events, layered on top of transport.EventType's
// stream-level values so a Handler can switch on e.Type across both in
// one statement.
const (
	EventConnAccept transport.EventType = 0x40 + iota
	EventConnClose
)
