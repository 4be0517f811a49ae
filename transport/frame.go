package transport

import (
	"fmt"
	"time"
)

// Frame type codes (spec §4.3).
const (
	frameTypePadding      uint64 = 0x00
	frameTypePing         uint64 = 0x01
	frameTypeAck          uint64 = 0x02
	frameTypeAckECN       uint64 = 0x03
	frameTypeResetStream  uint64 = 0x04
	frameTypeStopSending  uint64 = 0x05
	frameTypeCrypto       uint64 = 0x06
	frameTypeNewToken     uint64 = 0x07
	frameTypeStream       uint64 = 0x08
	frameTypeStreamEnd    uint64 = 0x0f
	frameTypeMaxData      uint64 = 0x10
	frameTypeMaxStreamData           uint64 = 0x11
	frameTypeMaxStreamsBidi          uint64 = 0x12
	frameTypeMaxStreamsUni            uint64 = 0x13
	frameTypeDataBlocked              uint64 = 0x14
	frameTypeStreamDataBlocked        uint64 = 0x15
	frameTypeStreamsBlockedBidi       uint64 = 0x16
	frameTypeStreamsBlockedUni         uint64 = 0x17
	frameTypeNewConnectionID           uint64 = 0x18
	frameTypeRetireConnectionID         uint64 = 0x19
	frameTypePathChallenge              uint64 = 0x1a
	frameTypePathResponse               uint64 = 0x1b
	frameTypeConnectionClose            uint64 = 0x1c
	frameTypeApplicationClose            uint64 = 0x1d
	frameTypeHanshakeDone                 uint64 = 0x1e
)

// isFrameAckEliciting reports whether a frame of the given type makes a
// packet ack-eliciting (every type except ACK and PADDING, spec GLOSSARY).
func isFrameAckEliciting(typ uint64) bool {
	return typ != frameTypeAck && typ != frameTypeAckECN && typ != frameTypePadding
}

// isFrameProbing reports whether typ is one of the probing frame types
// (spec §4.8 migration detection / GLOSSARY).
func isFrameProbing(typ uint64) bool {
	switch typ {
	case frameTypePathChallenge, frameTypePathResponse, frameTypeNewConnectionID, frameTypePadding:
		return true
	default:
		return false
	}
}

// isFrameAllowed reports whether typ may legally appear in a packet of
// kind typ (spec §4.3's per-packet-type frame permission table; RFC
// 9000 §12.4 Table 3). Initial and Handshake packets may only ever
// carry the frames needed to drive the handshake and probe loss
// recovery; 0-RTT cannot carry anything requiring confidentiality the
// server hasn't granted yet (CRYPTO, ACK) or that only makes sense once
// the handshake is confirmed (NEW_TOKEN, HANDSHAKE_DONE, PATH_RESPONSE).
func isFrameAllowed(typ uint64, pktType packetType) bool {
	switch pktType {
	case packetTypeInitial, packetTypeHandshake:
		switch typ {
		case frameTypePadding, frameTypePing, frameTypeAck, frameTypeAckECN,
			frameTypeCrypto, frameTypeConnectionClose:
			return true
		default:
			return false
		}
	case packetTypeZeroRTT:
		switch typ {
		case frameTypeAck, frameTypeAckECN, frameTypeCrypto, frameTypeNewToken,
			frameTypePathResponse, frameTypeHanshakeDone:
			return false
		default:
			return true
		}
	case packetTypeShort:
		return true
	default:
		return false
	}
}

// frame is implemented by every concrete frame type; encode/decode
// operate on the frame's own wire representation (including its
// leading type byte for decode, since the type often selects which
// decode function in the caller's dispatch switch to use, but encode
// always writes its own type prefix).
type frame interface {
	encode(b []byte) (int, error)
	encodedLen() int
}

// ---- PADDING ----

type paddingFrame struct {
	length int
}

func newPaddingFrame(n int) *paddingFrame { return &paddingFrame{length: n} }

func (f *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == 0 {
		n++
	}
	if n == 0 {
		n = 1
	}
	f.length = n
	return n, nil
}

func (f *paddingFrame) encode(b []byte) (int, error) {
	if len(b) < f.length {
		return 0, errShortBuffer
	}
	for i := 0; i < f.length; i++ {
		b[i] = 0
	}
	return f.length, nil
}

func (f *paddingFrame) encodedLen() int { return f.length }

// ---- PING ----

type pingFrame struct{}

func (f *pingFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	return putVarint(b, frameTypePing), nil
}

func (f *pingFrame) encodedLen() int { return 1 }

// ---- ACK ----

type ackRange struct {
	gap   uint64
	count uint64
}

type ackFrame struct {
	largestAck    uint64
	ackDelay      uint64
	firstAckRange uint64
	ranges        []ackRange
	ect0, ect1, ce uint64
	hasECN         bool
}

func newAckFrame(delay uint64, recv *rangeSet) *ackFrame {
	f := &ackFrame{ackDelay: delay}
	n := len(recv.ranges)
	if n == 0 {
		return f
	}
	last := recv.ranges[n-1]
	f.largestAck = last.end
	f.firstAckRange = last.end - last.start
	prevStart := last.start
	for i := n - 2; i >= 0; i-- {
		r := recv.ranges[i]
		gap := prevStart - r.end - 2
		count := r.end - r.start
		f.ranges = append(f.ranges, ackRange{gap: gap, count: count})
		prevStart = r.start
	}
	return f
}

// toRangeSet reconstructs the set of acknowledged packet numbers.
func (f *ackFrame) toRangeSet() *rangeSet {
	rs := &rangeSet{}
	if f.firstAckRange > f.largestAck {
		return nil
	}
	start := f.largestAck - f.firstAckRange
	rs.pushRange(start, f.largestAck)
	largest := start
	for _, r := range f.ranges {
		if r.gap+2 > largest {
			return nil
		}
		end := largest - r.gap - 2
		if r.count > end {
			return nil
		}
		rstart := end - r.count
		rs.pushRange(rstart, end)
		largest = rstart
	}
	return rs
}

func (f *ackFrame) decode(b []byte) (int, error) {
	off := 0
	var typ uint64
	n := getVarint(b[off:], &typ)
	if n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	f.hasECN = typ == frameTypeAckECN

	if n = getVarint(b[off:], &f.largestAck); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.ackDelay); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	var rangeCount uint64
	if n = getVarint(b[off:], &rangeCount); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.firstAckRange); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	f.ranges = f.ranges[:0]
	for i := uint64(0); i < rangeCount; i++ {
		var gap, count uint64
		if n = getVarint(b[off:], &gap); n == 0 {
			return 0, errInvalidVarInt
		}
		off += n
		if n = getVarint(b[off:], &count); n == 0 {
			return 0, errInvalidVarInt
		}
		off += n
		f.ranges = append(f.ranges, ackRange{gap: gap, count: count})
	}
	if f.hasECN {
		if n = getVarint(b[off:], &f.ect0); n == 0 {
			return 0, errInvalidVarInt
		}
		off += n
		if n = getVarint(b[off:], &f.ect1); n == 0 {
			return 0, errInvalidVarInt
		}
		off += n
		if n = getVarint(b[off:], &f.ce); n == 0 {
			return 0, errInvalidVarInt
		}
		off += n
	}
	return off, nil
}

func (f *ackFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	typ := frameTypeAck
	if f.hasECN {
		typ = frameTypeAckECN
	}
	off := putVarint(b, typ)
	off += putVarint(b[off:], f.largestAck)
	off += putVarint(b[off:], f.ackDelay)
	off += putVarint(b[off:], uint64(len(f.ranges)))
	off += putVarint(b[off:], f.firstAckRange)
	for _, r := range f.ranges {
		off += putVarint(b[off:], r.gap)
		off += putVarint(b[off:], r.count)
	}
	if f.hasECN {
		off += putVarint(b[off:], f.ect0)
		off += putVarint(b[off:], f.ect1)
		off += putVarint(b[off:], f.ce)
	}
	return off, nil
}

func (f *ackFrame) encodedLen() int {
	typ := frameTypeAck
	if f.hasECN {
		typ = frameTypeAckECN
	}
	n := varintLen(typ) + varintLen(f.largestAck) + varintLen(f.ackDelay) +
		varintLen(uint64(len(f.ranges))) + varintLen(f.firstAckRange)
	for _, r := range f.ranges {
		n += varintLen(r.gap) + varintLen(r.count)
	}
	if f.hasECN {
		n += varintLen(f.ect0) + varintLen(f.ect1) + varintLen(f.ce)
	}
	return n
}

func (f *ackFrame) String() string {
	return fmt.Sprintf("largest=%d delay=%d ranges=%d", f.largestAck, f.ackDelay, len(f.ranges))
}

// ---- RESET_STREAM ----

type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(id, code, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: id, errorCode: code, finalSize: finalSize}
}

func (f *resetStreamFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.finalSize); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	return off, nil
}

func (f *resetStreamFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeResetStream)
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.errorCode)
	off += putVarint(b[off:], f.finalSize)
	return off, nil
}

func (f *resetStreamFrame) encodedLen() int {
	return varintLen(frameTypeResetStream) + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}

func (f *resetStreamFrame) String() string {
	return fmt.Sprintf("stream=%d code=%d final_size=%d", f.streamID, f.errorCode, f.finalSize)
}

// ---- STOP_SENDING ----

type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(id, code uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: id, errorCode: code}
}

func (f *stopSendingFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	return off, nil
}

func (f *stopSendingFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeStopSending)
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.errorCode)
	return off, nil
}

func (f *stopSendingFrame) encodedLen() int {
	return varintLen(frameTypeStopSending) + varintLen(f.streamID) + varintLen(f.errorCode)
}

func (f *stopSendingFrame) String() string {
	return fmt.Sprintf("stream=%d code=%d", f.streamID, f.errorCode)
}

// ---- CRYPTO ----

type cryptoFrame struct {
	offset uint64
	data   []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

func (f *cryptoFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.offset); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	var length uint64
	if n = getVarint(b[off:], &length); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if uint64(len(b)) < uint64(off)+length {
		return 0, newError(FrameEncodingError, "truncated crypto data")
	}
	f.data = b[off : uint64(off)+length]
	off += int(length)
	return off, nil
}

func (f *cryptoFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeCrypto)
	off += putVarint(b[off:], f.offset)
	off += putVarint(b[off:], uint64(len(f.data)))
	off += copy(b[off:], f.data)
	return off, nil
}

func (f *cryptoFrame) encodedLen() int {
	return varintLen(frameTypeCrypto) + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) String() string {
	return fmt.Sprintf("offset=%d length=%d", f.offset, len(f.data))
}

// ---- NEW_TOKEN ----

type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame {
	return &newTokenFrame{token: token}
}

func (f *newTokenFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	var length uint64
	if n = getVarint(b[off:], &length); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if uint64(len(b)) < uint64(off)+length {
		return 0, newError(FrameEncodingError, "truncated new token")
	}
	f.token = b[off : uint64(off)+length]
	off += int(length)
	return off, nil
}

func (f *newTokenFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeNewToken)
	off += putVarint(b[off:], uint64(len(f.token)))
	off += copy(b[off:], f.token)
	return off, nil
}

func (f *newTokenFrame) encodedLen() int {
	return varintLen(frameTypeNewToken) + varintLen(uint64(len(f.token))) + len(f.token)
}

func (f *newTokenFrame) String() string {
	return fmt.Sprintf("token=%x", f.token)
}

// ---- STREAM ----

const (
	streamFlagFin = 0x01
	streamFlagLen = 0x02
	streamFlagOff = 0x04
)

type streamFrame struct {
	streamID uint64
	offset   uint64
	data     []byte
	fin      bool
}

func newStreamFrame(id uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: id, data: data, offset: offset, fin: fin}
}

func (f *streamFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	flags := typ - frameTypeStream
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if flags&streamFlagOff != 0 {
		if n = getVarint(b[off:], &f.offset); n == 0 {
			return 0, errInvalidVarInt
		}
		off += n
	} else {
		f.offset = 0
	}
	var length uint64
	if flags&streamFlagLen != 0 {
		if n = getVarint(b[off:], &length); n == 0 {
			return 0, errInvalidVarInt
		}
		off += n
	} else {
		length = uint64(len(b) - off)
	}
	if uint64(len(b)) < uint64(off)+length {
		return 0, newError(FrameEncodingError, "truncated stream data")
	}
	f.data = b[off : uint64(off)+length]
	off += int(length)
	f.fin = flags&streamFlagFin != 0
	if f.offset+uint64(len(f.data)) > maxVarInt {
		return 0, newError(FlowControlError, "stream offset overflow")
	}
	return off, nil
}

func (f *streamFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	var flags uint64
	if f.fin {
		flags |= streamFlagFin
	}
	if f.offset != 0 {
		flags |= streamFlagOff
	}
	flags |= streamFlagLen
	off := putVarint(b, frameTypeStream+flags)
	off += putVarint(b[off:], f.streamID)
	if flags&streamFlagOff != 0 {
		off += putVarint(b[off:], f.offset)
	}
	off += putVarint(b[off:], uint64(len(f.data)))
	off += copy(b[off:], f.data)
	return off, nil
}

func (f *streamFrame) encodedLen() int {
	n := varintLen(frameTypeStream) + varintLen(f.streamID)
	if f.offset != 0 {
		n += varintLen(f.offset)
	}
	n += varintLen(uint64(len(f.data))) + len(f.data)
	return n
}

func (f *streamFrame) String() string {
	return fmt.Sprintf("stream=%d offset=%d length=%d fin=%v", f.streamID, f.offset, len(f.data), f.fin)
}

// ---- MAX_DATA ----

type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(max uint64) *maxDataFrame { return &maxDataFrame{maximumData: max} }

func (f *maxDataFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.maximumData); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	return off, nil
}

func (f *maxDataFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeMaxData)
	off += putVarint(b[off:], f.maximumData)
	return off, nil
}

func (f *maxDataFrame) encodedLen() int {
	return varintLen(frameTypeMaxData) + varintLen(f.maximumData)
}

func (f *maxDataFrame) String() string { return fmt.Sprintf("max=%d", f.maximumData) }

// ---- MAX_STREAM_DATA ----

type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(id, max uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: id, maximumData: max}
}

func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.maximumData); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	return off, nil
}

func (f *maxStreamDataFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeMaxStreamData)
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.maximumData)
	return off, nil
}

func (f *maxStreamDataFrame) encodedLen() int {
	return varintLen(frameTypeMaxStreamData) + varintLen(f.streamID) + varintLen(f.maximumData)
}

func (f *maxStreamDataFrame) String() string {
	return fmt.Sprintf("stream=%d max=%d", f.streamID, f.maximumData)
}

// ---- MAX_STREAMS ----

type maxStreamsFrame struct {
	maximumStreams uint64
	bidi           bool
}

func newMaxStreamsFrame(max uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{maximumStreams: max, bidi: bidi}
}

func (f *maxStreamsFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	f.bidi = typ == frameTypeMaxStreamsBidi
	if n = getVarint(b[off:], &f.maximumStreams); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if f.maximumStreams > maxStreamsLimit {
		return 0, newError(StreamLimitError, "max streams too large")
	}
	return off, nil
}

func (f *maxStreamsFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	typ := frameTypeMaxStreamsUni
	if f.bidi {
		typ = frameTypeMaxStreamsBidi
	}
	off := putVarint(b, typ)
	off += putVarint(b[off:], f.maximumStreams)
	return off, nil
}

func (f *maxStreamsFrame) encodedLen() int {
	typ := frameTypeMaxStreamsUni
	if f.bidi {
		typ = frameTypeMaxStreamsBidi
	}
	return varintLen(typ) + varintLen(f.maximumStreams)
}

func (f *maxStreamsFrame) String() string {
	return fmt.Sprintf("bidi=%v max=%d", f.bidi, f.maximumStreams)
}

// ---- DATA_BLOCKED ----

type dataBlockedFrame struct {
	dataLimit uint64
}

func newDataBlockedFrame(limit uint64) *dataBlockedFrame { return &dataBlockedFrame{dataLimit: limit} }

func (f *dataBlockedFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.dataLimit); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	return off, nil
}

func (f *dataBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeDataBlocked)
	off += putVarint(b[off:], f.dataLimit)
	return off, nil
}

func (f *dataBlockedFrame) encodedLen() int {
	return varintLen(frameTypeDataBlocked) + varintLen(f.dataLimit)
}

func (f *dataBlockedFrame) String() string { return fmt.Sprintf("limit=%d", f.dataLimit) }

// ---- STREAM_DATA_BLOCKED ----

type streamDataBlockedFrame struct {
	streamID  uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(id, limit uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: id, dataLimit: limit}
}

func (f *streamDataBlockedFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.dataLimit); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	return off, nil
}

func (f *streamDataBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeStreamDataBlocked)
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.dataLimit)
	return off, nil
}

func (f *streamDataBlockedFrame) encodedLen() int {
	return varintLen(frameTypeStreamDataBlocked) + varintLen(f.streamID) + varintLen(f.dataLimit)
}

func (f *streamDataBlockedFrame) String() string {
	return fmt.Sprintf("stream=%d limit=%d", f.streamID, f.dataLimit)
}

// ---- STREAMS_BLOCKED ----

type streamsBlockedFrame struct {
	streamLimit uint64
	bidi        bool
}

func newStreamsBlockedFrame(limit uint64, bidi bool) *streamsBlockedFrame {
	return &streamsBlockedFrame{streamLimit: limit, bidi: bidi}
}

func (f *streamsBlockedFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	f.bidi = typ == frameTypeStreamsBlockedBidi
	if n = getVarint(b[off:], &f.streamLimit); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	return off, nil
}

func (f *streamsBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	typ := frameTypeStreamsBlockedUni
	if f.bidi {
		typ = frameTypeStreamsBlockedBidi
	}
	off := putVarint(b, typ)
	off += putVarint(b[off:], f.streamLimit)
	return off, nil
}

func (f *streamsBlockedFrame) encodedLen() int {
	typ := frameTypeStreamsBlockedUni
	if f.bidi {
		typ = frameTypeStreamsBlockedBidi
	}
	return varintLen(typ) + varintLen(f.streamLimit)
}

func (f *streamsBlockedFrame) String() string {
	return fmt.Sprintf("bidi=%v limit=%d", f.bidi, f.streamLimit)
}

// ---- NEW_CONNECTION_ID ----

type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo  uint64
	connectionID   []byte
	resetToken     [statelessResetTokenLen]byte
}

func (f *newConnectionIDFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.sequenceNumber); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.retirePriorTo); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if f.retirePriorTo > f.sequenceNumber {
		return 0, newError(ProtocolViolation, "retire_prior_to > sequence_number")
	}
	if off >= len(b) {
		return 0, errInvalidVarInt
	}
	cidLen := int(b[off])
	off++
	if cidLen > MaxCIDLength || len(b) < off+cidLen+statelessResetTokenLen {
		return 0, newError(FrameEncodingError, "truncated new_connection_id")
	}
	f.connectionID = append([]byte(nil), b[off:off+cidLen]...)
	off += cidLen
	copy(f.resetToken[:], b[off:off+statelessResetTokenLen])
	off += statelessResetTokenLen
	return off, nil
}

func (f *newConnectionIDFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeNewConnectionID)
	off += putVarint(b[off:], f.sequenceNumber)
	off += putVarint(b[off:], f.retirePriorTo)
	b[off] = byte(len(f.connectionID))
	off++
	off += copy(b[off:], f.connectionID)
	off += copy(b[off:], f.resetToken[:])
	return off, nil
}

func (f *newConnectionIDFrame) encodedLen() int {
	return varintLen(frameTypeNewConnectionID) + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) +
		1 + len(f.connectionID) + statelessResetTokenLen
}

func (f *newConnectionIDFrame) String() string {
	return fmt.Sprintf("seq=%d retire_prior_to=%d cid=%x", f.sequenceNumber, f.retirePriorTo, f.connectionID)
}

// ---- RETIRE_CONNECTION_ID ----

type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func (f *retireConnectionIDFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if n = getVarint(b[off:], &f.sequenceNumber); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	return off, nil
}

func (f *retireConnectionIDFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypeRetireConnectionID)
	off += putVarint(b[off:], f.sequenceNumber)
	return off, nil
}

func (f *retireConnectionIDFrame) encodedLen() int {
	return varintLen(frameTypeRetireConnectionID) + varintLen(f.sequenceNumber)
}

func (f *retireConnectionIDFrame) String() string {
	return fmt.Sprintf("seq=%d", f.sequenceNumber)
}

// ---- PATH_CHALLENGE / PATH_RESPONSE ----

type pathChallengeFrame struct {
	data [8]byte
}

func (f *pathChallengeFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if len(b) < off+8 {
		return 0, newError(FrameEncodingError, "truncated path_challenge")
	}
	copy(f.data[:], b[off:off+8])
	off += 8
	return off, nil
}

func (f *pathChallengeFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypePathChallenge)
	off += copy(b[off:], f.data[:])
	return off, nil
}

func (f *pathChallengeFrame) encodedLen() int { return varintLen(frameTypePathChallenge) + 8 }
func (f *pathChallengeFrame) String() string  { return fmt.Sprintf("data=%x", f.data) }

type pathResponseFrame struct {
	data [8]byte
}

func (f *pathResponseFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if len(b) < off+8 {
		return 0, newError(FrameEncodingError, "truncated path_response")
	}
	copy(f.data[:], b[off:off+8])
	off += 8
	return off, nil
}

func (f *pathResponseFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := putVarint(b, frameTypePathResponse)
	off += copy(b[off:], f.data[:])
	return off, nil
}

func (f *pathResponseFrame) encodedLen() int { return varintLen(frameTypePathResponse) + 8 }
func (f *pathResponseFrame) String() string  { return fmt.Sprintf("data=%x", f.data) }

// ---- CONNECTION_CLOSE ----

type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode, frameType uint64, reason []byte, application bool) *connectionCloseFrame {
	return &connectionCloseFrame{application: application, errorCode: errorCode, frameType: frameType, reasonPhrase: reason}
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	off, n := 0, 0
	var typ uint64
	if n = getVarint(b, &typ); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	f.application = typ == frameTypeApplicationClose
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if !f.application {
		if n = getVarint(b[off:], &f.frameType); n == 0 {
			return 0, errInvalidVarInt
		}
		off += n
	}
	var length uint64
	if n = getVarint(b[off:], &length); n == 0 {
		return 0, errInvalidVarInt
	}
	off += n
	if uint64(len(b)) < uint64(off)+length {
		return 0, newError(FrameEncodingError, "truncated connection_close reason")
	}
	f.reasonPhrase = b[off : uint64(off)+length]
	off += int(length)
	return off, nil
}

func (f *connectionCloseFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	typ := frameTypeConnectionClose
	if f.application {
		typ = frameTypeApplicationClose
	}
	off := putVarint(b, typ)
	off += putVarint(b[off:], f.errorCode)
	if !f.application {
		off += putVarint(b[off:], f.frameType)
	}
	off += putVarint(b[off:], uint64(len(f.reasonPhrase)))
	off += copy(b[off:], f.reasonPhrase)
	return off, nil
}

func (f *connectionCloseFrame) encodedLen() int {
	typ := frameTypeConnectionClose
	if f.application {
		typ = frameTypeApplicationClose
	}
	n := varintLen(typ) + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) String() string {
	return fmt.Sprintf("error_code=%d reason=%s", f.errorCode, f.reasonPhrase)
}

// ---- HANDSHAKE_DONE ----

type handshakeDoneFrame struct{}

func (f *handshakeDoneFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 {
		return 0, errInvalidVarInt
	}
	return n, nil
}

func (f *handshakeDoneFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	return putVarint(b, frameTypeHanshakeDone), nil
}

func (f *handshakeDoneFrame) encodedLen() int { return varintLen(frameTypeHanshakeDone) }

// ---- outgoing packet bookkeeping ----

// outgoingPacket records everything needed to process loss/ack for a
// sent packet, plus the frames it carried for retransmission policy
// (spec §4.4).
type outgoingPacket struct {
	packetNumber uint64
	timeSent     time.Time
	size         uint64
	ackEliciting bool
	inFlight     bool
	frames       []frame
}

func newOutgoingPacket(pn uint64, now time.Time) *outgoingPacket {
	return &outgoingPacket{packetNumber: pn, timeSent: now}
}

func (op *outgoingPacket) addFrame(f frame) {
	op.frames = append(op.frames, f)
	switch f.(type) {
	case *ackFrame, *paddingFrame:
	default:
		op.ackEliciting = true
	}
	op.inFlight = true
}

// encodeFrames writes frames sequentially into b, returning bytes written.
func encodeFrames(b []byte, frames []frame) (int, error) {
	off := 0
	for _, f := range frames {
		n, err := f.encode(b[off:])
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}
