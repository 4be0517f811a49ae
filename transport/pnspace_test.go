package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPacketNumberSpaceCanDecryptEncrypt(t *testing.T) {
	var sp packetNumberSpace
	sp.init()
	assert.False(t, sp.canDecrypt())
	assert.False(t, sp.canEncrypt())

	sp.opener = &packetProtection{}
	sp.sealer = &packetProtection{}
	assert.True(t, sp.canDecrypt())
	assert.True(t, sp.canEncrypt())

	sp.dropped = true
	assert.False(t, sp.canDecrypt())
	assert.False(t, sp.canEncrypt())
}

func TestPacketNumberSpaceCanDecryptEncryptZeroRTT(t *testing.T) {
	var sp packetNumberSpace
	sp.init()
	assert.False(t, sp.canDecryptZeroRTT())
	assert.False(t, sp.canEncryptZeroRTT())

	sp.openerEarly = &packetProtection{}
	sp.sealerEarly = &packetProtection{}
	assert.True(t, sp.canDecryptZeroRTT())
	assert.True(t, sp.canEncryptZeroRTT())
}

func TestPacketNumberSpaceReadyRequiresSealer(t *testing.T) {
	var sp packetNumberSpace
	sp.init()
	sp.ackElicited = true
	assert.False(t, sp.ready(), "no sealer yet: cannot send regardless of ackElicited")

	sp.sealer = &packetProtection{}
	assert.True(t, sp.ready())
}

func TestPacketNumberSpaceReadyOnPendingCrypto(t *testing.T) {
	var sp packetNumberSpace
	sp.init()
	sp.sealer = &packetProtection{}
	assert.False(t, sp.ready())

	sp.cryptoStream.send.writeOff = 10
	assert.True(t, sp.ready())
}

func TestPacketNumberSpaceOnPacketReceivedTracksLargest(t *testing.T) {
	var sp packetNumberSpace
	sp.init()
	now := time.Now()
	sp.onPacketReceived(5, now)
	assert.EqualValues(t, 5, sp.largestRecvPacketNumber)
	assert.True(t, sp.isPacketReceived(5))
	assert.False(t, sp.isPacketReceived(6))

	earlier := now.Add(-time.Second)
	sp.onPacketReceived(2, earlier)
	assert.EqualValues(t, 5, sp.largestRecvPacketNumber, "lower pn must not regress largest")
}

func TestPacketNumberSpaceResetClearsStateKeepsKeys(t *testing.T) {
	var sp packetNumberSpace
	sp.init()
	sp.opener = &packetProtection{}
	sp.onPacketReceived(3, time.Now())
	sp.ackElicited = true
	sp.nextPacketNumber = 7

	sp.reset()
	assert.EqualValues(t, 0, sp.nextPacketNumber)
	assert.EqualValues(t, 0, sp.largestRecvPacketNumber)
	assert.False(t, sp.ackElicited)
	assert.False(t, sp.isPacketReceived(3))
	assert.NotNil(t, sp.opener, "reset must not discard keys")
}

func TestPacketNumberSpaceDropDiscardsKeys(t *testing.T) {
	var sp packetNumberSpace
	sp.init()
	sp.opener = &packetProtection{}
	sp.sealer = &packetProtection{}
	sp.openerEarly = &packetProtection{}
	sp.sealerEarly = &packetProtection{}

	sp.drop()
	assert.True(t, sp.dropped)
	assert.Nil(t, sp.opener)
	assert.Nil(t, sp.sealer)
	assert.Nil(t, sp.openerEarly)
	assert.Nil(t, sp.sealerEarly)
	assert.False(t, sp.canDecrypt())
	assert.False(t, sp.canEncrypt())
}

func TestHeaderProtectionMaskBits(t *testing.T) {
	assert.EqualValues(t, 0x1f, headerProtectionMaskBits(packetTypeShort))
	assert.EqualValues(t, 0x0f, headerProtectionMaskBits(packetTypeInitial))
}
