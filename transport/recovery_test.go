package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLossRecoveryInit(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)
	for _, la := range r.largestAcked {
		assert.EqualValues(t, -1, la)
	}
	assert.Equal(t, uint64(initialWindow), r.congestionWindow)
}

func TestLossRecoveryOnPacketSentTracksBytesInFlight(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)

	op := &outgoingPacket{packetNumber: 1, timeSent: now, size: 100, ackEliciting: true, inFlight: true}
	op.frames = []frame{&pingFrame{}}
	r.onPacketSent(op, packetSpaceApplication)

	assert.EqualValues(t, 100, r.bytesInFlight)
	require.Len(t, r.sent[packetSpaceApplication], 1)
}

func TestLossRecoveryOnPacketSentSkipsEmptyFrames(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)

	op := &outgoingPacket{packetNumber: 1, timeSent: now, size: 100, inFlight: true}
	r.onPacketSent(op, packetSpaceApplication)

	assert.EqualValues(t, 0, r.bytesInFlight)
	assert.Empty(t, r.sent[packetSpaceApplication])
}

func TestLossRecoveryOnAckReceivedDrainsAcked(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)

	op := &outgoingPacket{packetNumber: 1, timeSent: now, size: 100, ackEliciting: true, inFlight: true}
	op.frames = []frame{&pingFrame{}}
	r.onPacketSent(op, packetSpaceApplication)

	ranges := &rangeSet{}
	ranges.push(1)
	r.onAckReceived(ranges, 0, packetSpaceApplication, now.Add(50*time.Millisecond))

	assert.Empty(t, r.sent[packetSpaceApplication])
	var drained int
	r.drainAcked(packetSpaceApplication, func(frame) { drained++ })
	assert.Equal(t, 1, drained)
	assert.EqualValues(t, 0, r.bytesInFlight)
}

func TestLossRecoveryDetectLostPackets(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)

	for pn := uint64(1); pn <= 5; pn++ {
		op := &outgoingPacket{packetNumber: pn, timeSent: now, size: 10, ackEliciting: true, inFlight: true}
		op.frames = []frame{&pingFrame{}}
		r.onPacketSent(op, packetSpaceApplication)
	}

	// Ack only packet 5: packets 1-2 fall at least packetThreshold behind
	// the largest acked and are declared lost by count.
	ranges := &rangeSet{}
	ranges.push(5)
	r.onAckReceived(ranges, 0, packetSpaceApplication, now.Add(time.Second))

	var lost int
	r.drainLost(packetSpaceApplication, func(frame) { lost++ })
	assert.GreaterOrEqual(t, lost, 2)
}

func TestLossRecoveryUpdateRTT(t *testing.T) {
	var r lossRecovery
	r.init(time.Now())
	r.updateRTT(100*time.Millisecond, 0)
	assert.Equal(t, 100*time.Millisecond, r.smoothedRTT)
	assert.Equal(t, 100*time.Millisecond, r.minRTT)

	r.updateRTT(50*time.Millisecond, 0)
	assert.Less(t, r.smoothedRTT, 100*time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, r.minRTT)
}

func TestLossRecoveryOnPacketLostCongestionHalvesWindow(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)
	before := r.congestionWindow

	r.onPacketLostCongestion(sentPacket{size: 1000, timeSent: now}, now)
	assert.Less(t, r.congestionWindow, before)
	assert.GreaterOrEqual(t, r.congestionWindow, uint64(minimumWindow))
	assert.Equal(t, r.congestionWindow, r.slowStartThresh)
}

func TestLossRecoveryDropUnackedData(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)

	op := &outgoingPacket{packetNumber: 1, timeSent: now, size: 50, ackEliciting: true, inFlight: true}
	op.frames = []frame{&pingFrame{}}
	r.onPacketSent(op, packetSpaceInitial)

	r.dropUnackedData(packetSpaceInitial)
	assert.EqualValues(t, 0, r.bytesInFlight)
	assert.Empty(t, r.sent[packetSpaceInitial])
	assert.EqualValues(t, -1, r.largestAcked[packetSpaceInitial])
}
