package transport

import (
	"crypto/hmac"

	"golang.org/x/crypto/blake2b"
)

// connIDEntry is one connection ID this endpoint has issued to its
// peer (local) or one the peer has issued to us (remote), per the
// NEW_CONNECTION_ID bookkeeping in spec §4.7.
type connIDEntry struct {
	seq        uint64
	cid        []byte
	resetToken [statelessResetTokenLen]byte
	retired    bool
}

// connIDManager tracks the pool of connection IDs on both sides of one
// connection: the ones we have handed out via NEW_CONNECTION_ID (so we
// recognize a retirement and know which reset tokens are still live)
// and the ones the peer has handed out to us (candidates the path
// manager can switch to on migration). Active-limit enforcement
// follows active_connection_id_limit (spec §4.7).
type connIDManager struct {
	local  []connIDEntry // Issued by us.
	remote []connIDEntry // Issued by peer.

	nextLocalSeq uint64
	peerLimit    uint64 // active_connection_id_limit advertised by peer; caps the unretired entries of local.

	resetSecret []byte // Static per-connection key for deriving stateless reset tokens.
}

func (m *connIDManager) init(resetSecret []byte) {
	m.resetSecret = resetSecret
	m.peerLimit = DefaultActiveConnectionIDLimit
	m.nextLocalSeq = 1 // Sequence 0 is the connection's initial CID.
}

// statelessResetToken deterministically derives the token bound to cid
// (RFC 9000 §10.3: "MUST accept the use of a tool ... to generate
// stateless reset tokens"; a keyed MAC over the CID with a
// connection-local secret is the standard approach, matching what
// every production QUIC stack in practice does instead of tracking a
// token-to-CID table across restarts).
func (m *connIDManager) statelessResetToken(cid []byte) [statelessResetTokenLen]byte {
	return StatelessResetToken(m.resetSecret, cid)
}

// StatelessResetToken derives the stateless reset token an endpoint
// would issue for cid given its static secret key (RFC 9000 §10.3). It
// is exported so the socket layer can recompute the token for a
// connection ID it no longer holds any *Conn state for, using the same
// secret every Conn on that socket was initialized with
// (Config.StatelessResetKey) - this is what makes the reset stateless.
func StatelessResetToken(secret, cid []byte) [statelessResetTokenLen]byte {
	var out [statelessResetTokenLen]byte
	mac, err := blake2b.New(statelessResetTokenLen, secret)
	if err != nil {
		panic(err) // blake2b.New only fails for an oversized key, which secret never is.
	}
	mac.Write(cid)
	copy(out[:], mac.Sum(nil))
	return out
}

// issue allocates the next local connection ID to advertise via
// NEW_CONNECTION_ID, respecting the peer's active_connection_id_limit.
func (m *connIDManager) issue(cid []byte) (*newConnectionIDFrame, bool) {
	active := 0
	for _, e := range m.local {
		if !e.retired {
			active++
		}
	}
	if uint64(active) >= m.peerLimit {
		return nil, false
	}
	seq := m.nextLocalSeq
	m.nextLocalSeq++
	token := m.statelessResetToken(cid)
	m.local = append(m.local, connIDEntry{seq: seq, cid: cid, resetToken: token})
	return &newConnectionIDFrame{
		sequenceNumber: seq,
		connectionID:   cid,
		resetToken:     token,
	}, true
}

// retireLocal marks sequence seq (one of ours) retired. It runs on
// receipt of a RETIRE_CONNECTION_ID, which the peer sends about CIDs
// *we* issued.
func (m *connIDManager) retireLocal(seq uint64) {
	for i := range m.local {
		if m.local[i].seq == seq {
			m.local[i].retired = true
			return
		}
	}
}

// addRemote records a connection ID the peer issued to us via
// NEW_CONNECTION_ID, retiring any of our previously-stored remote CIDs
// the frame's retire_prior_to field obsoletes. Returns the sequence
// numbers newly obsoleted (each needing a RETIRE_CONNECTION_ID sent
// back) or an error if the limit we advertised was exceeded.
func (m *connIDManager) addRemote(f *newConnectionIDFrame, localLimit uint64) ([]uint64, error) {
	for _, e := range m.remote {
		if e.seq == f.sequenceNumber {
			return nil, nil // Duplicate NEW_CONNECTION_ID, ignore.
		}
	}
	active := 0
	for _, e := range m.remote {
		if !e.retired {
			active++
		}
	}
	if uint64(active)+1 > localLimit {
		return nil, newError(ConnectionIDLimitError, "too many active connection ids")
	}
	m.remote = append(m.remote, connIDEntry{
		seq:        f.sequenceNumber,
		cid:        f.connectionID,
		resetToken: f.resetToken,
	})
	var obsoleted []uint64
	for i := range m.remote {
		if m.remote[i].seq < f.retirePriorTo && !m.remote[i].retired {
			m.remote[i].retired = true
			obsoleted = append(obsoleted, m.remote[i].seq)
		}
	}
	return obsoleted, nil
}

// resetTokens collects every stateless reset token the peer has handed
// us so far, for comparing against an otherwise-undecryptable packet
// (spec §4.10).
func (m *connIDManager) resetTokens() [][statelessResetTokenLen]byte {
	tokens := make([][statelessResetTokenLen]byte, 0, len(m.remote))
	for _, e := range m.remote {
		tokens = append(tokens, e.resetToken)
	}
	return tokens
}

// nextUnusedRemote returns an active, not-yet-used remote CID to
// migrate to, or nil if none is available (spec §4.8 path migration).
func (m *connIDManager) nextUnusedRemote(current []byte) *connIDEntry {
	for i := range m.remote {
		e := &m.remote[i]
		if e.retired {
			continue
		}
		if hmac.Equal(e.cid, current) {
			continue
		}
		return e
	}
	return nil
}
