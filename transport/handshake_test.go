package transport

import (
	"testing"

	"crypto/tls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeWriteSpaceTracksLevel(t *testing.T) {
	var h tlsHandshake
	h.writeLevel = tls.QUICEncryptionLevelInitial
	assert.Equal(t, packetSpaceInitial, h.writeSpace())

	h.writeLevel = tls.QUICEncryptionLevelHandshake
	assert.Equal(t, packetSpaceHandshake, h.writeSpace())

	h.writeLevel = tls.QUICEncryptionLevelApplication
	assert.Equal(t, packetSpaceApplication, h.writeSpace())
}

func TestHandshakeResetClearsState(t *testing.T) {
	h := tlsHandshake{
		started:        true,
		completed:      true,
		confirmed:      true,
		earlyDataReady: true,
		writeLevel:     tls.QUICEncryptionLevelApplication,
	}
	h.reset()
	assert.False(t, h.started)
	assert.False(t, h.completed)
	assert.False(t, h.confirmed)
	assert.False(t, h.earlyDataReady)
	assert.Equal(t, tls.QUICEncryptionLevelInitial, h.writeLevel)
	assert.Nil(t, h.quic)
}

func TestQuicLevelForSpace(t *testing.T) {
	assert.Equal(t, tls.QUICEncryptionLevelInitial, quicLevelForSpace(packetSpaceInitial))
	assert.Equal(t, tls.QUICEncryptionLevelHandshake, quicLevelForSpace(packetSpaceHandshake))
	assert.Equal(t, tls.QUICEncryptionLevelApplication, quicLevelForSpace(packetSpaceApplication))
}

func TestSpaceForQUICLevel(t *testing.T) {
	assert.Equal(t, packetSpaceInitial, spaceForQUICLevel(tls.QUICEncryptionLevelInitial))
	assert.Equal(t, packetSpaceHandshake, spaceForQUICLevel(tls.QUICEncryptionLevelHandshake))
	assert.Equal(t, packetSpaceApplication, spaceForQUICLevel(tls.QUICEncryptionLevelApplication))
	assert.Equal(t, packetSpaceApplication, spaceForQUICLevel(tls.QUICEncryptionLevelEarly))
}

func TestPacketProtectionFromSecretSuites(t *testing.T) {
	secret := make([]byte, 48)
	for i := range secret {
		secret[i] = byte(i)
	}

	aes128 := packetProtectionFromSecret(0x1301, secret)
	require.NotNil(t, aes128)
	assert.Equal(t, 16, aes128.aead.Overhead())
	assert.Len(t, aes128.iv, 12)

	aes256 := packetProtectionFromSecret(0x1302, secret)
	require.NotNil(t, aes256)
	assert.Len(t, aes256.iv, 12)

	unknown := packetProtectionFromSecret(0xffff, secret)
	require.NotNil(t, unknown)
	assert.Equal(t, 16, unknown.aead.Overhead())
}
