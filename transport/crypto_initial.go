package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/hkdf"
)

// initialSalt is the QUIC v1 Initial salt (RFC 9001 §5.2), used to
// derive Initial secrets from a connection ID. AEAD/header-protection
// are explicitly an external collaborator per spec §1; this file is
// the reference adapter implementing that narrow interface using
// stdlib AES-GCM, the same primitive every QUIC stack uses underneath.
var initialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3,
	0x4d, 0x17, 0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad,
	0xcc, 0xbb, 0x7f, 0x0a,
}

const (
	initialKeyLen = 16
	initialIVLen  = 12
	initialHPLen  = 16
)

// packetProtection bundles the record-protection AEAD and the header
// protection cipher for one direction (read or write) of one
// packet-number space.
type packetProtection struct {
	aead cipher.AEAD
	iv   []byte
	hp   cipher.Block
}

func hkdfExpandLabelWithHash(newHash func() hash.Hash, secret []byte, label string, length int) []byte {
	// QUIC HKDF-Expand-Label reuses the TLS 1.3 construction (RFC 8446
	// §7.1) with an empty context and the "tls13 " prefix.
	info := make([]byte, 0, 2+1+6+len(label)+1)
	info = append(info, byte(length>>8), byte(length))
	fullLabel := "tls13 " + label
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, 0) // Empty context.
	out := make([]byte, length)
	r := hkdf.Expand(newHash, secret, info)
	if _, err := r.Read(out); err != nil {
		panic(err) // hkdf.Expand only fails if length exceeds 255*hash size.
	}
	return out
}

func hkdfExpandLabel(secret []byte, label string, length int) []byte {
	return hkdfExpandLabelWithHash(sha256.New, secret, label, length)
}

// deriveDirectionalSecretWithHash derives AEAD/IV/header-protection
// keys from a TLS traffic secret already produced at the hash's output
// length, per RFC 9001 §5.1. Used both for the Initial space (always
// SHA-256 over the HKDF-Extract of the destination CID) and, via
// handshake.go, for the Handshake/Application spaces using whatever
// hash the negotiated cipher suite specifies.
func deriveDirectionalSecretWithHash(secret []byte, newHash func() hash.Hash, keyLen, ivLen, hpLen int) *packetProtection {
	key := hkdfExpandLabelWithHash(newHash, secret, "quic key", keyLen)
	iv := hkdfExpandLabelWithHash(newHash, secret, "quic iv", ivLen)
	hpKey := hkdfExpandLabelWithHash(newHash, secret, "quic hp", hpLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	hpBlock, err := aes.NewCipher(hpKey)
	if err != nil {
		panic(err)
	}
	return &packetProtection{aead: aead, iv: iv, hp: hpBlock}
}

func deriveDirectionalSecret(initialSecret []byte, label string) *packetProtection {
	secret := hkdfExpandLabel(initialSecret, label, sha256.Size)
	return deriveDirectionalSecretWithHash(secret, sha256.New, initialKeyLen, initialIVLen, initialHPLen)
}

// initialAEAD holds both endpoints' Initial-level keys, derived from
// the client's chosen (or server-supplied, after Retry) destination
// connection ID (RFC 9001 §5.2).
type initialAEAD struct {
	client *packetProtection
	server *packetProtection
}

func (a *initialAEAD) init(dcid []byte) {
	initialSecretReader := hkdf.Extract(sha256.New, dcid, initialSalt)
	a.client = deriveDirectionalSecret(initialSecretReader, "client in")
	a.server = deriveDirectionalSecret(initialSecretReader, "server in")
}

// packetNonce XORs the IV with the (big-endian, left-zero-padded)
// packet number, per RFC 9001 §5.3.
func packetNonce(iv []byte, pn uint64) []byte {
	nonce := make([]byte, len(iv))
	copy(nonce, iv)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pn >> (8 * i))
	}
	return nonce
}

// headerProtectionMask computes the 5-byte mask applied to the first
// header byte and the truncated packet number, sampled from the
// ciphertext per RFC 9001 §5.4.
func headerProtectionMask(hp cipher.Block, sample []byte) []byte {
	out := make([]byte, hp.BlockSize())
	hp.Encrypt(out, sample)
	return out[:5]
}
