package transport

// EventType identifies what changed on a connection between calls to
// Conn.Events (spec §7 application-facing notifications).
type EventType uint8

const (
	// EventStream means new data is ready to Read on StreamID, or the
	// peer sent a FIN that has not yet been consumed.
	EventStream EventType = iota
	// EventStreamComplete means all sent data on StreamID has been
	// acknowledged after the local side closed it.
	EventStreamComplete
	// EventStreamReset means the peer abruptly terminated StreamID with
	// RESET_STREAM; ErrorCode carries the application error code.
	EventStreamReset
	// EventStreamStop means the peer asked us, via STOP_SENDING, to stop
	// sending on StreamID; ErrorCode carries the application error code.
	EventStreamStop
	// EventNewToken means the server sent a NEW_TOKEN frame; Token holds
	// the opaque value to present as Config.Token on a future connection
	// attempt to the same server, to skip address validation (spec
	// §4.10). Client-side only.
	EventNewToken
	// EventLocalCIDIssued means this Conn now accepts packets addressed
	// to a new local connection ID, either replenishing the peer's pool
	// after a RETIRE_CONNECTION_ID (spec §4.7) or advertising the
	// preferred_address CID at sequence 1 (spec §4.8). CID holds the raw
	// bytes; the socket-owning layer must index it the same way it
	// indexes the original SCID or packets for it will be dropped.
	EventLocalCIDIssued
)

// Event reports one state change on a connection.
type Event struct {
	Type      EventType
	StreamID  uint64
	ErrorCode uint64
	Token     []byte
	CID       []byte
}

func newStreamRecvEvent(streamID uint64) Event {
	return Event{Type: EventStream, StreamID: streamID}
}

func newStreamCompleteEvent(streamID uint64) Event {
	return Event{Type: EventStreamComplete, StreamID: streamID}
}

func newStreamResetEvent(streamID, errorCode uint64) Event {
	return Event{Type: EventStreamReset, StreamID: streamID, ErrorCode: errorCode}
}

func newStreamStopEvent(streamID, errorCode uint64) Event {
	return Event{Type: EventStreamStop, StreamID: streamID, ErrorCode: errorCode}
}

func newNewTokenEvent(token []byte) Event {
	return Event{Type: EventNewToken, Token: token}
}

func newLocalCIDIssuedEvent(cid []byte) Event {
	return Event{Type: EventLocalCIDIssued, CID: cid}
}
