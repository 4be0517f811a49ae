package transport

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
)

// tlsHandshake adapts crypto/tls's native QUIC support (tls.QUICConn,
// added in Go 1.21 specifically so QUIC implementations do not need to
// vendor or reimplement TLS 1.3) to the narrow collaborator interface
// conn.go calls through: feed it CRYPTO bytes per encryption level, and
// drain key-update/transport-parameter/completion events from it. This
// is the "external crypto collaborator" spec §6 describes — AEAD and
// header-protection keys for the Handshake and Application spaces are
// derived here from the secrets crypto/tls hands back, using the same
// HKDF-Expand-Label construction crypto_initial.go already implements
// for the Initial space.
type tlsHandshake struct {
	conn      *Conn
	tlsConfig *tls.Config
	quic      *tls.QUICConn

	localTransportParams *Parameters
	peerParams           *Parameters

	started   bool
	completed bool
	confirmed bool

	// earlyDataReady is set once crypto/tls hands the client its 0-RTT
	// write secret, meaning early data may now be sent (spec §4.9).
	earlyDataReady bool

	writeLevel tls.QUICEncryptionLevel
}

func (h *tlsHandshake) init(conn *Conn, config *tls.Config) {
	h.conn = conn
	h.tlsConfig = config
}

func (h *tlsHandshake) setTransportParams(p *Parameters) {
	h.localTransportParams = p
	if h.quic != nil {
		h.quic.SetTransportParameters(p.Marshal())
	}
}

func (h *tlsHandshake) peerTransportParams() *Parameters {
	return h.peerParams
}

// HandshakeComplete reports whether the TLS handshake has finished
// (spec §3: transition out of the Handshaking lifecycle state).
func (h *tlsHandshake) HandshakeComplete() bool {
	return h.completed
}

// reset discards in-progress handshake state, used after Version
// Negotiation or Retry forces the client to start over.
func (h *tlsHandshake) reset() {
	h.quic = nil
	h.started = false
	h.completed = false
	h.confirmed = false
	h.earlyDataReady = false
	h.writeLevel = tls.QUICEncryptionLevelInitial
}

// writeSpace reports which packet-number space a probe/close packet
// should be sent in, tracking the highest encryption level crypto/tls
// has started writing at.
func (h *tlsHandshake) writeSpace() packetSpace {
	switch h.writeLevel {
	case tls.QUICEncryptionLevelInitial:
		return packetSpaceInitial
	case tls.QUICEncryptionLevelHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}

func (h *tlsHandshake) ensureStarted() error {
	if h.started {
		return nil
	}
	qc := &tls.QUICConfig{TLSConfig: h.tlsConfig}
	if h.conn.isClient {
		h.quic = tls.QUICClient(qc)
	} else {
		h.quic = tls.QUICServer(qc)
	}
	if h.localTransportParams != nil {
		h.quic.SetTransportParameters(h.localTransportParams.Marshal())
	}
	if err := h.quic.Start(context.Background()); err != nil {
		return newError(cryptoErrorBase, err.Error())
	}
	h.started = true
	return nil
}

// doHandshake feeds any newly-received CRYPTO bytes into crypto/tls,
// drains its events (new keys, transport parameters, outgoing CRYPTO
// bytes, handshake completion), and installs derived keys into the
// relevant packetNumberSpace.
func (h *tlsHandshake) doHandshake() error {
	if err := h.ensureStarted(); err != nil {
		return err
	}
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		level := quicLevelForSpace(space)
		cs := &h.conn.packetNumberSpaces[space].cryptoStream
		for {
			data := cs.recv.readAll()
			if len(data) == 0 {
				break
			}
			if err := h.quic.HandleData(level, data); err != nil {
				return newError(cryptoErrorBase, err.Error())
			}
		}
	}
	return h.drainEvents()
}

func (h *tlsHandshake) drainEvents() error {
	for {
		e := h.quic.NextEvent()
		switch e.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			prot := packetProtectionFromSecret(e.Suite, e.Data)
			if e.Level == tls.QUICEncryptionLevelEarly {
				// 0-RTT read keys: server-side only, shares the Application
				// space's packet numbers but not its 1-RTT keys (spec §4.9).
				h.conn.packetNumberSpaces[packetSpaceApplication].openerEarly = prot
				break
			}
			h.conn.packetNumberSpaces[spaceForQUICLevel(e.Level)].opener = prot
		case tls.QUICSetWriteSecret:
			prot := packetProtectionFromSecret(e.Suite, e.Data)
			if e.Level == tls.QUICEncryptionLevelEarly {
				// 0-RTT write keys: client-side only.
				h.conn.packetNumberSpaces[packetSpaceApplication].sealerEarly = prot
				h.earlyDataReady = true
				break
			}
			space := spaceForQUICLevel(e.Level)
			h.conn.packetNumberSpaces[space].sealer = prot
			if space > packetSpaceInitial {
				h.writeLevel = e.Level
			}
		case tls.QUICWriteData:
			space := spaceForQUICLevel(e.Level)
			cs := &h.conn.packetNumberSpaces[space].cryptoStream
			cs.send.write(e.Data)
		case tls.QUICTransportParameters:
			peer := &Parameters{}
			if err := peer.Unmarshal(e.Data, h.conn.isClient); err != nil {
				return err
			}
			h.peerParams = peer
		case tls.QUICHandshakeDone:
			h.completed = true
		case tls.QUICTransportParametersRequired:
			if h.localTransportParams != nil {
				h.quic.SetTransportParameters(h.localTransportParams.Marshal())
			}
		}
	}
}

func quicLevelForSpace(space packetSpace) tls.QUICEncryptionLevel {
	switch space {
	case packetSpaceInitial:
		return tls.QUICEncryptionLevelInitial
	case packetSpaceHandshake:
		return tls.QUICEncryptionLevelHandshake
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func spaceForQUICLevel(level tls.QUICEncryptionLevel) packetSpace {
	switch level {
	case tls.QUICEncryptionLevelInitial:
		return packetSpaceInitial
	case tls.QUICEncryptionLevelHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}

// packetProtectionFromSecret derives AEAD, IV and header-protection
// keys from a crypto/tls-provided traffic secret, per RFC 9001 §5.1
// ("quic key"/"quic iv"/"quic hp" labels applied to whatever secret TLS
// produced for this level). Only the two AEAD suites TLS 1.3 actually
// negotiates for QUIC in crypto/tls's default preference order are
// handled: AES-128-GCM (SHA-256) and AES-256-GCM (SHA-384); ChaCha20
// derivation is intentionally left unimplemented since crypto/tls's
// QUIC mode does not offer it ahead of the two AES suites in practice.
func packetProtectionFromSecret(suite uint16, secret []byte) *packetProtection {
	const (
		tlsAES128GCMSHA256 = 0x1301
		tlsAES256GCMSHA384 = 0x1302
	)
	switch suite {
	case tlsAES256GCMSHA384:
		return deriveDirectionalSecretWithHash(secret, sha512.New384, 32, 12, 32)
	default: // tlsAES128GCMSHA256 and any unrecognized suite fall back to the common case.
		return deriveDirectionalSecretWithHash(secret, sha256.New, 16, 12, 16)
	}
}
