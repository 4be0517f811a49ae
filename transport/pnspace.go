package transport

import "time"

// packetNumberSpace holds everything scoped to one of the three
// packet-number spaces (spec §3): its own packet-number counter, its
// own CRYPTO stream, its own record-protection keys, and the ack-range
// bookkeeping needed to generate and process ACK frames for that space
// alone.
type packetNumberSpace struct {
	opener *packetProtection // Keys for decrypting packets from the peer.
	sealer *packetProtection // Keys for encrypting packets we send.

	// openerEarly/sealerEarly hold the 0-RTT (TLS "early") traffic keys.
	// They are only ever populated on the Application-space instance,
	// alongside opener/sealer (the 1-RTT keys): 0-RTT and 1-RTT share a
	// packet-number space (spec §4.9) but use distinct AEAD keys.
	openerEarly *packetProtection
	sealerEarly *packetProtection

	dropped bool

	nextPacketNumber uint64

	largestRecvPacketNumber uint64
	largestRecvPacketTime   time.Time
	recvPacketNeedAck       *rangeSet // Packet numbers received but not yet acked.
	ackElicited             bool
	firstPacketAcked        bool

	cryptoStream cryptoStream
}

func (sp *packetNumberSpace) init() {
	sp.recvPacketNeedAck = &rangeSet{}
}

func (sp *packetNumberSpace) canDecrypt() bool {
	return !sp.dropped && sp.opener != nil
}

func (sp *packetNumberSpace) canEncrypt() bool {
	return !sp.dropped && sp.sealer != nil
}

// canDecryptZeroRTT/canEncryptZeroRTT mirror canDecrypt/canEncrypt for the
// 0-RTT keys, which live and die independently of the 1-RTT keys on the
// same (Application) space.
func (sp *packetNumberSpace) canDecryptZeroRTT() bool {
	return !sp.dropped && sp.openerEarly != nil
}

func (sp *packetNumberSpace) canEncryptZeroRTT() bool {
	return !sp.dropped && sp.sealerEarly != nil
}

// ready reports whether this space currently has something worth
// sending a packet for on its own (an ACK owed, or outstanding CRYPTO
// data): used by Conn.writeSpace to pick which space to flush next.
func (sp *packetNumberSpace) ready() bool {
	if !sp.canEncrypt() {
		return false
	}
	if sp.ackElicited {
		return true
	}
	cs := &sp.cryptoStream.send
	if cs.sendOff < cs.writeOff {
		return true
	}
	if len(cs.resendFrom) > 0 {
		return true
	}
	return false
}

func headerProtectionMaskBits(typ packetType) byte {
	if typ == packetTypeShort {
		return 0x1f
	}
	return 0x0f
}

// decryptPacket removes header protection, recovers the full packet
// number, and authenticates+decrypts the payload (RFC 9001 §5.3-5.4).
// b is the full received datagram (or coalesced-packet slice) starting
// at this packet's first byte; p.headerLen must already be set by
// decodeHeader. Returns the plaintext payload and the total number of
// bytes of b this packet occupied.
func (sp *packetNumberSpace) decryptPacket(b []byte, p *packet) ([]byte, int, error) {
	opener := sp.opener
	if p.typ == packetTypeZeroRTT {
		opener = sp.openerEarly
	}
	if opener == nil {
		return nil, 0, newError(InternalError, "no keys available to decrypt packet")
	}
	hdrLen := p.headerLen
	sampleOffset := hdrLen + 4
	if sampleOffset+16 > len(b) {
		return nil, 0, newError(ProtocolViolation, "packet too short for header protection sample")
	}
	mask := headerProtectionMask(opener.hp, b[sampleOffset:sampleOffset+16])
	b[0] ^= mask[0] & headerProtectionMaskBits(p.typ)
	pnLen := int(b[0]&pnLengthMask) + 1
	if hdrLen+pnLen > len(b) {
		return nil, 0, newError(ProtocolViolation, "truncated packet number")
	}
	for i := 0; i < pnLen; i++ {
		b[hdrLen+i] ^= mask[1+i]
	}
	var truncated uint64
	for i := 0; i < pnLen; i++ {
		truncated = truncated<<8 | uint64(b[hdrLen+i])
	}
	pn := recoverPacketNumber(sp.largestRecvPacketNumber, truncated, pnLen)

	var total int
	if p.typ == packetTypeShort {
		total = len(b)
	} else {
		total = hdrLen + p.payloadLen
		if total > len(b) {
			return nil, 0, newError(ProtocolViolation, "packet length exceeds datagram")
		}
	}
	cipherStart := hdrLen + pnLen
	if cipherStart > total {
		return nil, 0, newError(ProtocolViolation, "packet number overruns payload")
	}
	aad := b[:cipherStart]
	nonce := packetNonce(opener.iv, pn)
	plain, err := opener.aead.Open(b[cipherStart:cipherStart], nonce, b[cipherStart:total], aad)
	if err != nil {
		return nil, 0, newError(ProtocolViolation, "aead open failed")
	}
	p.packetNumber = pn
	p.packetNumberLen = pnLen
	return plain, total, nil
}

// encryptPacket seals the plaintext payload already written to
// b[headerLen+pnLen:] and applies header protection, per RFC 9001
// §5.3-5.4. b must already be sized to headerLen+pnLen+len(plaintext)
// plus the AEAD tag (p.payloadLen, set by the caller, already includes
// this overhead).
func (sp *packetNumberSpace) encryptPacket(b []byte, p *packet) error {
	sealer := sp.sealer
	if p.typ == packetTypeZeroRTT {
		sealer = sp.sealerEarly
	}
	if sealer == nil {
		return newError(InternalError, "no keys available to encrypt packet")
	}
	hdrLen := p.headerLen
	pnLen := p.packetNumberLen
	cipherStart := hdrLen + pnLen
	overhead := sealer.aead.Overhead()
	plainEnd := len(b) - overhead
	if plainEnd < cipherStart {
		return newError(InternalError, "packet buffer too small for AEAD overhead")
	}
	aad := b[:cipherStart]
	nonce := packetNonce(sealer.iv, p.packetNumber)
	plaintext := append([]byte(nil), b[cipherStart:plainEnd]...)
	sealed := sealer.aead.Seal(b[cipherStart:cipherStart], nonce, plaintext, aad)
	if len(sealed) != len(b)-cipherStart {
		return newError(InternalError, "unexpected sealed length")
	}

	sampleOffset := hdrLen + 4
	if sampleOffset+16 > len(b) {
		return newError(InternalError, "packet too short for header protection sample")
	}
	mask := headerProtectionMask(sealer.hp, b[sampleOffset:sampleOffset+16])
	b[0] ^= mask[0] & headerProtectionMaskBits(p.typ)
	for i := 0; i < pnLen; i++ {
		b[hdrLen+i] ^= mask[1+i]
	}
	return nil
}

// isPacketReceived reports whether pn has already been recorded as
// received in this space (duplicate detection, spec §4.2). Packet
// numbers below the retained range have already had their ACK
// confirmed by the peer and pruned by removeUntil; treating them as
// not-a-duplicate is a deliberate bound on how much history is kept.
func (sp *packetNumberSpace) isPacketReceived(pn uint64) bool {
	return sp.recvPacketNeedAck.contains(pn)
}

// onPacketReceived records pn as received (for ACK generation and
// future duplicate detection) and updates largest-seen bookkeeping.
func (sp *packetNumberSpace) onPacketReceived(pn uint64, now time.Time) {
	sp.recvPacketNeedAck.push(pn)
	if pn >= sp.largestRecvPacketNumber || sp.largestRecvPacketTime.IsZero() {
		sp.largestRecvPacketNumber = pn
		sp.largestRecvPacketTime = now
	}
}

// reset discards this space's packet-number and ACK state (used after
// Version Negotiation or Retry, which require the Initial space to
// start over), but not its keys: deriveInitialKeyMaterial is always
// called again by the caller immediately after.
func (sp *packetNumberSpace) reset() {
	sp.nextPacketNumber = 0
	sp.largestRecvPacketNumber = 0
	sp.largestRecvPacketTime = time.Time{}
	sp.recvPacketNeedAck = &rangeSet{}
	sp.ackElicited = false
	sp.firstPacketAcked = false
	sp.cryptoStream = cryptoStream{}
}

// drop discards this space permanently (spec §4.3: once a later space
// is confirmed usable, an earlier one's keys and unacked data are
// discarded and never needed again).
func (sp *packetNumberSpace) drop() {
	sp.dropped = true
	sp.opener = nil
	sp.sealer = nil
	sp.openerEarly = nil
	sp.sealerEarly = nil
}
