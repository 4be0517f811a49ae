package transport

// flowControl tracks one direction's worth of credit accounting for
// either a whole connection or a single stream (spec §4.6). The same
// type is reused for both: callers keep separate instances.
type flowControl struct {
	// Receive side: what we have told the peer it may send (maxRecv),
	// what we will tell it next once committed (maxRecvNext), and how
	// much has actually been received/read so far.
	maxRecv     uint64
	maxRecvNext uint64
	recvTotal   uint64
	recvWindow  uint64 // Initial window size, used to size autotuned increments.

	// Send side: what the peer has told us we may send (maxSend), and
	// how much we have sent so far.
	maxSend   uint64
	sendTotal uint64

	blockedSent bool // DATA_BLOCKED/STREAM_DATA_BLOCKED already sent for maxSend's current value.
}

func (f *flowControl) init(maxRecv, maxSend uint64) {
	f.maxRecv = maxRecv
	f.maxRecvNext = maxRecv
	f.recvWindow = maxRecv
	f.maxSend = maxSend
}

// canRecv returns how many more bytes may be received before hitting
// the currently advertised limit.
func (f *flowControl) canRecv() uint64 {
	if f.recvTotal >= f.maxRecv {
		return 0
	}
	return f.maxRecv - f.recvTotal
}

// addRecv records n more bytes received/consumed against the limit.
// Exceeding the limit is a bug in the caller (the caller must check
// canRecv first); addRecv does not check, and canRecv then reports 0
// rather than underflowing.
func (f *flowControl) addRecv(n int) {
	f.recvTotal += uint64(n)
}

// canSend returns how many more bytes may be sent before hitting the
// peer-advertised limit.
func (f *flowControl) canSend() uint64 {
	if f.sendTotal >= f.maxSend {
		return 0
	}
	return f.maxSend - f.sendTotal
}

func (f *flowControl) addSend(n int) {
	f.sendTotal += uint64(n)
}

// setMaxSend applies a peer-advertised MAX_DATA/MAX_STREAM_DATA value.
// Per spec §4.6 invariant, limits are monotonic non-decreasing: a
// non-increasing update is silently ignored.
func (f *flowControl) setMaxSend(max uint64) {
	if max > f.maxSend {
		f.maxSend = max
		f.blockedSent = false
	}
}

// shouldUpdateMaxRecv reports whether autotuning wants to raise the
// local receive limit now, without waiting for a STREAM_DATA_BLOCKED
// (spec §4.6 credit issuance policy): once the consumed prefix has
// used up at least half of the current window, double the window.
func (f *flowControl) shouldUpdateMaxRecv() bool {
	if f.recvWindow == 0 {
		return false
	}
	consumed := f.recvTotal
	threshold := f.maxRecvNext - f.recvWindow/2
	return consumed >= threshold && f.maxRecvNext < maxVarInt-f.recvWindow
}

// commitMaxRecv is called once a MAX_DATA/MAX_STREAM_DATA carrying
// maxRecvNext has actually been queued for sending: it computes the
// next autotuned target so repeated calls keep raising the window.
func (f *flowControl) commitMaxRecv() {
	f.maxRecv = f.maxRecvNext
	if f.recvWindow > 0 {
		f.maxRecvNext = f.maxRecv + f.recvWindow
	}
}

// blocked reports whether the send side is currently out of credit,
// and whether a blocked signal for the current limit has already been
// sent (spec §4.6: at most once per limit value).
func (f *flowControl) blocked() bool {
	return f.canSend() == 0 && !f.blockedSent
}

func (f *flowControl) setBlockedSent() {
	f.blockedSent = true
}
