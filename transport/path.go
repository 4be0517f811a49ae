package transport

import (
	"crypto/rand"
	"net"
	"time"
)

// pathState tracks PATH_CHALLENGE/PATH_RESPONSE validation and the
// anti-amplification ledger for one network path, per spec §4.8. A
// Conn keeps one active path plus, while a migration is being probed,
// one candidate being validated concurrently.
type pathState struct {
	addr net.Addr

	validated bool
	challenge [8]byte
	pending   bool // challenge sent, awaiting matching PATH_RESPONSE
	sentAt    time.Time

	// Anti-amplification limit (RFC 9000 §8): until the path is
	// validated, an endpoint must not send more than 3x the bytes it
	// has received from that address.
	bytesRecv uint64
	bytesSent uint64
}

const antiAmplificationFactor = 3

func newPathState(addr net.Addr) *pathState {
	return &pathState{addr: addr}
}

// canSend reports whether n additional bytes may be sent on this path
// without violating the anti-amplification limit. Once validated the
// limit no longer applies.
func (p *pathState) canSend(n int) bool {
	if p.validated {
		return true
	}
	return p.bytesSent+uint64(n) <= p.bytesRecv*antiAmplificationFactor
}

func (p *pathState) onSent(n int) {
	p.bytesSent += uint64(n)
}

func (p *pathState) onReceived(n int) {
	p.bytesRecv += uint64(n)
}

// startChallenge issues a new PATH_CHALLENGE for this path, returning
// the frame to send. Called when a new peer address is observed
// (migration) or to revalidate an idle path.
func (p *pathState) startChallenge(now time.Time) (*pathChallengeFrame, error) {
	var data [8]byte
	if _, err := rand.Read(data[:]); err != nil {
		return nil, err
	}
	p.challenge = data
	p.pending = true
	p.sentAt = now
	return &pathChallengeFrame{data: data}, nil
}

// onResponse reports whether f matches the outstanding challenge, and
// if so marks the path validated (RFC 9000 §8.2.3).
func (p *pathState) onResponse(f *pathResponseFrame) bool {
	if !p.pending || f.data != p.challenge {
		return false
	}
	p.pending = false
	p.validated = true
	return true
}

// addrEqual reports whether a and b name the same address (nil equals
// only nil). Conn does not call it (its Read/Write API carries no
// net.Addr), and being unexported it is not reachable from the
// socket-owning layer.
func addrEqual(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
