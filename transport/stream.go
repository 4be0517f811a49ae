package transport

import (
	"bytes"
	"fmt"
)

// Stream send-part state (spec §4.5).
type sendState uint8

const (
	sendStateReady sendState = iota
	sendStateSend
	sendStateDataSent
	sendStateResetSent
	sendStateDataRecvd
	sendStateResetRecvd
)

// Stream receive-part state (spec §4.5).
type recvState uint8

const (
	recvStateRecv recvState = iota
	recvStateSizeKnown
	recvStateDataRecvd
	recvStateDataRead
	recvStateResetRecvd
	recvStateResetRead
)

// isStreamLocal reports whether a stream ID was initiated by this
// endpoint (bit 0: 0=client-init, 1=server-init).
func isStreamLocal(id uint64, isClient bool) bool {
	clientInitiated := id&0x1 == 0
	return clientInitiated == isClient
}

// isStreamBidi reports whether a stream ID is bidirectional (bit 1).
func isStreamBidi(id uint64) bool {
	return id&0x2 == 0
}

// streamInitialID returns the lowest stream ID for (isClient, bidi).
func streamInitialID(isClient, bidi bool) uint64 {
	var id uint64
	if !isClient {
		id |= 0x1
	}
	if !bidi {
		id |= 0x2
	}
	return id
}

// ---- send buffer ----

// sendChunk is one contiguous still-unacknowledged write.
type sendChunk struct {
	offset uint64
	data   []byte
}

// sendBuffer accumulates application writes, tracks the acknowledged
// prefix, and re-offers lost ranges for retransmission (spec §4.4
// "idempotent data frames").
type sendBuffer struct {
	buf        bytes.Buffer
	baseOffset uint64 // Offset of buf[0]; bytes before this are fully acked and discarded.
	writeOff   uint64 // Offset of the next byte appended by Write.
	sendOff    uint64 // Offset of the next byte not yet offered in a frame.
	ackedUpTo  uint64 // Highest contiguous acked offset + 1.
	finalSize  uint64
	finalSet   bool
	resendFrom []sendChunk // Ranges pushed back after loss, offered before new data.
	closed     bool
}

func (s *sendBuffer) write(data []byte) (int, error) {
	if s.finalSet {
		return 0, newError(StreamStateError, "write after close")
	}
	n, err := s.buf.Write(data)
	s.writeOff += uint64(n)
	return n, err
}

func (s *sendBuffer) close() {
	s.finalSet = true
	s.finalSize = s.writeOff
}

// pop returns up to max bytes of data to send next: lost ranges first,
// then new data, along with the offset of the first returned byte and
// whether this chunk carries FIN.
func (s *sendBuffer) pop(max int) (data []byte, offset uint64, fin bool) {
	if len(s.resendFrom) > 0 {
		c := s.resendFrom[0]
		if len(c.data) > max {
			data = c.data[:max]
			s.resendFrom[0].data = c.data[max:]
			s.resendFrom[0].offset += uint64(max)
		} else {
			data = c.data
			s.resendFrom = s.resendFrom[1:]
		}
		return data, c.offset, false
	}
	avail := int(s.writeOff - s.sendOff)
	if avail == 0 {
		if s.finalSet && s.sendOff == s.finalSize {
			return nil, s.sendOff, false
		}
		return nil, s.sendOff, false
	}
	if avail > max {
		avail = max
	}
	start := int(s.sendOff - s.baseOffset)
	data = s.buf.Bytes()[start : start+avail]
	offset = s.sendOff
	s.sendOff += uint64(avail)
	fin = s.finalSet && s.sendOff == s.finalSize
	return data, offset, fin
}

// push re-queues a byte range declared lost.
func (s *sendBuffer) push(data []byte, offset uint64, fin bool) error {
	if len(data) > 0 {
		s.resendFrom = append(s.resendFrom, sendChunk{offset: offset, data: data})
	}
	return nil
}

// ack records that [offset, offset+length) has been acknowledged,
// pruning the prefix of the buffer once the acked range is contiguous
// from the start.
func (s *sendBuffer) ack(offset uint64, length uint64) {
	end := offset + length
	if end > s.ackedUpTo {
		s.ackedUpTo = end
	}
	if offset <= s.baseOffset && end > s.baseOffset {
		discard := int(end - s.baseOffset)
		if discard > s.buf.Len() {
			discard = s.buf.Len()
		}
		s.buf.Next(discard)
		s.baseOffset = end
	}
}

// complete reports whether all written (and closed) data has been acked.
func (s *sendBuffer) complete() bool {
	return s.finalSet && s.ackedUpTo >= s.finalSize
}

// ---- receive buffer ----

type recvChunk struct {
	offset uint64
	data   []byte
}

// recvBuffer reassembles out-of-order byte ranges and exposes the
// contiguous prefix to the application (spec §4.5 reassembly).
type recvBuffer struct {
	chunks    []recvChunk // Sorted, non-overlapping pending out-of-order data.
	readOff   uint64      // Next offset the application will read.
	finalSize uint64
	finalSet  bool
	closed    bool
}

// push inserts a byte range, discarding any portion already delivered
// or duplicated. fin marks this range's end as the stream's final size.
func (r *recvBuffer) push(data []byte, offset uint64, fin bool) error {
	end := offset + uint64(len(data))
	if end > maxVarInt {
		return newError(FlowControlError, "stream offset overflow")
	}
	if r.finalSet {
		if (fin && end != r.finalSize) || end > r.finalSize {
			return newError(FinalSizeError, "final size mismatch")
		}
	}
	if fin {
		r.finalSize = end
		r.finalSet = true
	}
	if end <= r.readOff {
		return nil // Fully duplicate.
	}
	if offset < r.readOff {
		skip := r.readOff - offset
		data = data[skip:]
		offset = r.readOff
	}
	if len(data) == 0 {
		return nil
	}
	r.insert(recvChunk{offset: offset, data: data})
	return nil
}

func (r *recvBuffer) insert(c recvChunk) {
	i := 0
	for i < len(r.chunks) && r.chunks[i].offset < c.offset {
		i++
	}
	r.chunks = append(r.chunks, recvChunk{})
	copy(r.chunks[i+1:], r.chunks[i:])
	r.chunks[i] = c
}

// read drains the contiguous prefix starting at readOff into b.
func (r *recvBuffer) read(b []byte) (int, error) {
	if len(r.chunks) == 0 || r.chunks[0].offset != r.readOff {
		if r.finalSet && r.readOff == r.finalSize {
			return 0, nil
		}
		return 0, nil
	}
	n := copy(b, r.chunks[0].data)
	r.readOff += uint64(n)
	if n == len(r.chunks[0].data) {
		r.chunks = r.chunks[1:]
	} else {
		r.chunks[0].data = r.chunks[0].data[n:]
		r.chunks[0].offset += uint64(n)
	}
	return n, nil
}

// readAll drains and returns the entire contiguous prefix currently
// available, or nil if none is ready. Used by the CRYPTO streams,
// which (unlike application streams) have no fixed-size reader buffer
// to read into.
func (r *recvBuffer) readAll() []byte {
	if len(r.chunks) == 0 || r.chunks[0].offset != r.readOff {
		return nil
	}
	data := r.chunks[0].data
	r.readOff += uint64(len(data))
	r.chunks = r.chunks[1:]
	return data
}

func (r *recvBuffer) dataReady() bool {
	return len(r.chunks) > 0 && r.chunks[0].offset == r.readOff
}

func (r *recvBuffer) fin() bool {
	return r.finalSet && r.readOff >= r.finalSize
}

func (r *recvBuffer) String() string {
	return fmt.Sprintf("read_offset=%d final=%v(%d) pending=%d", r.readOff, r.finalSet, r.finalSize, len(r.chunks))
}

// ---- stream receive side (state machine wrapper) ----

type streamRecv struct {
	state     recvState
	buf       recvBuffer
	resetCode uint64
}

// reset applies a RESET_STREAM, returning how many bytes of connection
// flow credit this reset newly charges (spec §4.6 reset accounting:
// exactly finalSize bytes total, regardless of what was delivered).
func (r *streamRecv) reset(finalSize uint64) (int, error) {
	if r.buf.finalSet && finalSize != r.buf.finalSize {
		return 0, newError(FinalSizeError, "reset final size mismatch")
	}
	if r.state == recvStateResetRecvd || r.state == recvStateResetRead {
		return 0, nil
	}
	prevCharged := r.buf.finalSize
	if !r.buf.finalSet {
		prevCharged = 0
	}
	r.buf.finalSize = finalSize
	r.buf.finalSet = true
	r.state = recvStateResetRecvd
	if finalSize < prevCharged {
		return 0, nil
	}
	return int(finalSize - prevCharged), nil
}

// ---- Stream ----

// Stream is one multiplexed, ordered byte channel within a connection
// (spec §3, §4.5).
type Stream struct {
	id   uint64
	send sendBuffer
	recv streamRecv

	sendState sendState

	flow     flowControl
	connFlow *flowControl // Connection-level ledger, shared across streams.

	updateMaxData bool
	priority      int

	readable     bool
	writable     bool
}

func newStream(id uint64, local, bidi bool) *Stream {
	s := &Stream{id: id}
	s.writable = bidi || local
	s.readable = bidi || !local
	if !s.writable {
		s.sendState = sendStateDataRecvd // Receive-only from this endpoint's perspective.
	}
	if !s.readable {
		s.recv.state = recvStateDataRead
	}
	return s
}

// Write appends application data to the stream's send buffer.
func (s *Stream) Write(b []byte) (int, error) {
	if !s.writable {
		return 0, newError(StreamStateError, "stream is receive-only")
	}
	if s.sendState == sendStateResetSent || s.sendState == sendStateResetRecvd {
		return 0, newError(StreamStateError, "stream reset")
	}
	n, err := s.send.write(b)
	if err == nil && s.sendState == sendStateReady {
		s.sendState = sendStateSend
	}
	return n, err
}

// Close marks the stream's send side complete (FIN).
func (s *Stream) Close() error {
	if !s.writable {
		return nil
	}
	s.send.close()
	if s.sendState == sendStateReady {
		s.sendState = sendStateSend
	}
	return nil
}

// Read drains reassembled, in-order bytes into b.
func (s *Stream) Read(b []byte) (int, error) {
	if !s.readable {
		return 0, newError(StreamStateError, "stream is send-only")
	}
	if s.recv.state == recvStateResetRecvd {
		s.recv.state = recvStateResetRead
		return 0, newError(StreamStateError, "stream reset by peer")
	}
	n, err := s.recv.buf.read(b)
	if n > 0 {
		s.releaseFlowCredit(n)
	}
	if s.recv.buf.fin() {
		s.recv.state = recvStateDataRead
	}
	return n, err
}

func (s *Stream) releaseFlowCredit(n int) {
	s.flow.commitConsumed(n)
	if s.connFlow != nil {
		s.connFlow.commitConsumed(n)
	}
}

// commitConsumed is called as bytes are *read* by the application
// (Stream.Read via releaseFlowCredit). It does nothing: the autotuner
// (shouldUpdateMaxRecv) works from recvTotal, which addRecv advances on
// arrival, so receive credit is released as bytes are received, not as
// they are read.
func (f *flowControl) commitConsumed(n int) {
	_ = n
}

// pushRecv delivers newly-received stream bytes into the reassembly
// buffer and advances the receive-side state machine.
func (s *Stream) pushRecv(data []byte, offset uint64, fin bool) error {
	if s.recv.state == recvStateResetRecvd || s.recv.state == recvStateResetRead {
		return nil
	}
	if err := s.recv.buf.push(data, offset, fin); err != nil {
		return err
	}
	if s.recv.state == recvStateRecv && fin {
		s.recv.state = recvStateSizeKnown
	}
	if s.recv.buf.fin() && len(s.recv.buf.chunks) == 0 {
		if s.recv.state == recvStateSizeKnown {
			s.recv.state = recvStateDataRecvd
		}
	}
	return nil
}

// popSend returns up to max bytes to send in a STREAM frame next.
func (s *Stream) popSend(max int) (data []byte, offset uint64, fin bool) {
	data, offset, fin = s.send.pop(max)
	if len(data) > 0 || fin {
		if s.sendState == sendStateReady || s.sendState == sendStateSend {
			s.sendState = sendStateSend
		}
		if fin {
			s.sendState = sendStateDataSent
		}
	}
	return
}

// ackMaxData marks that our own MAX_STREAM_DATA is no longer pending
// (called once it has been queued for sending; see Conn.sendFrames).
func (s *Stream) ackMaxData() {
	s.updateMaxData = false
}

// reset initiates RESET_STREAM on the send side (application-driven
// cancellation, spec §5 "Cancellation").
func (s *Stream) reset(errorCode uint64) {
	if s.sendState == sendStateDataRecvd || s.sendState == sendStateResetRecvd {
		return
	}
	s.sendState = sendStateResetSent
}

func (s *Stream) String() string {
	return fmt.Sprintf("id=%d send_state=%d recv=%v", s.id, s.sendState, &s.recv.buf)
}

// ---- crypto stream ----

// cryptoStream carries one packet-number space's CRYPTO frames: an
// ordered, reliable byte stream with no flow control and no FIN (the
// handshake collaborator closes it implicitly when the space is
// dropped, spec §4.3).
type cryptoStream struct {
	send sendBuffer
	recv recvBuffer
}

func (c *cryptoStream) pushRecv(data []byte, offset uint64, fin bool) error {
	return c.recv.push(data, offset, fin)
}

func (c *cryptoStream) popSend(max int) (data []byte, offset uint64, fin bool) {
	return c.send.pop(max)
}

// ---- stream table ----

// streamMap owns every stream of a connection, plus the locally- and
// peer-advertised per-direction stream-count limits (spec §4.6
// "Stream-count control").
type streamMap struct {
	streams map[uint64]*Stream

	nextIDBidiLocal  uint64
	nextIDUniLocal   uint64
	nextIDBidiRemote uint64
	nextIDUniRemote  uint64

	localMaxStreamsBidi uint64
	localMaxStreamsUni  uint64
	peerMaxStreamsBidi  uint64
	peerMaxStreamsUni   uint64

	// Set when a STREAMS_BLOCKED frame suggests our last MAX_STREAMS may
	// have been lost, forcing a resend of the current limit.
	updateMaxStreamsBidi bool
	updateMaxStreamsUni  bool

	openedBidi uint64
	openedUni  uint64

	isClient bool
}

func (m *streamMap) init(localMaxBidi, localMaxUni uint64) {
	m.streams = make(map[uint64]*Stream)
	m.localMaxStreamsBidi = localMaxBidi
	m.localMaxStreamsUni = localMaxUni
}

func (m *streamMap) get(id uint64) *Stream {
	return m.streams[id]
}

func (m *streamMap) setPeerMaxStreamsBidi(n uint64) {
	if n > m.peerMaxStreamsBidi {
		m.peerMaxStreamsBidi = n
	}
}

func (m *streamMap) setPeerMaxStreamsUni(n uint64) {
	if n > m.peerMaxStreamsUni {
		m.peerMaxStreamsUni = n
	}
}

// create opens stream id (and, per spec §3 invariant, implicitly all
// lower-numbered same-type streams) and enforces the stream-count
// limit appropriate to whether id is locally- or peer-initiated.
func (m *streamMap) create(id uint64, local, bidi bool) (*Stream, error) {
	var limit uint64
	var opened *uint64
	if local {
		if bidi {
			limit = m.peerMaxStreamsBidi
		} else {
			limit = m.peerMaxStreamsUni
		}
	} else {
		if bidi {
			limit = m.localMaxStreamsBidi
		} else {
			limit = m.localMaxStreamsUni
		}
	}
	index := id >> 2
	if index >= limit {
		return nil, newError(StreamLimitError, fmt.Sprintf("stream %d exceeds limit %d", id, limit))
	}
	if bidi {
		opened = &m.openedBidi
	} else {
		opened = &m.openedUni
	}
	// Implicit opening of all lower-numbered same-type streams.
	base := id & 0x3
	for n := index; ; n-- {
		sid := n<<2 | base
		if _, ok := m.streams[sid]; !ok {
			st := newStream(sid, local, bidi)
			m.streams[sid] = st
		}
		if n == 0 {
			break
		}
	}
	if index+1 > *opened {
		*opened = index + 1
	}
	return m.streams[id], nil
}

// hasFlushable reports whether any stream has pending data, a FIN, or a
// MAX_STREAM_DATA to send.
func (m *streamMap) hasFlushable() bool {
	for _, st := range m.streams {
		if st.send.sendOff < st.send.writeOff {
			return true
		}
		if st.send.finalSet && st.send.sendOff < st.send.finalSize {
			return true
		}
		if len(st.send.resendFrom) > 0 {
			return true
		}
		if st.updateMaxData {
			return true
		}
	}
	return false
}
