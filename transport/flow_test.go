package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowControlCanRecv(t *testing.T) {
	var f flowControl
	f.init(100, 0)
	assert.EqualValues(t, 100, f.canRecv())

	f.addRecv(40)
	assert.EqualValues(t, 60, f.canRecv())

	f.addRecv(60)
	assert.EqualValues(t, 0, f.canRecv())
}

func TestFlowControlCanSend(t *testing.T) {
	var f flowControl
	f.init(0, 50)
	assert.EqualValues(t, 50, f.canSend())

	f.addSend(50)
	assert.EqualValues(t, 0, f.canSend())
}

func TestFlowControlSetMaxSendMonotonic(t *testing.T) {
	var f flowControl
	f.init(0, 10)
	f.addSend(10)
	assert.True(t, f.blocked())

	f.setMaxSend(5) // non-increasing: ignored
	assert.EqualValues(t, 10, f.maxSend)
	assert.True(t, f.blocked())

	f.setMaxSend(20)
	assert.EqualValues(t, 20, f.maxSend)
	assert.False(t, f.blocked(), "raising the limit clears the blocked state")
}

func TestFlowControlBlockedSentOnce(t *testing.T) {
	var f flowControl
	f.init(0, 10)
	f.addSend(10)
	assert.True(t, f.blocked())
	f.setBlockedSent()
	assert.False(t, f.blocked(), "already reported blocked for this limit")

	f.setMaxSend(30)
	f.addSend(20)
	assert.True(t, f.blocked(), "new limit resets the blocked-sent flag")
}

func TestFlowControlShouldUpdateMaxRecv(t *testing.T) {
	var f flowControl
	f.init(100, 0)
	assert.False(t, f.shouldUpdateMaxRecv())

	f.addRecv(50) // exactly half the window consumed
	assert.True(t, f.shouldUpdateMaxRecv())
}

func TestFlowControlCommitMaxRecvAdvancesWindow(t *testing.T) {
	var f flowControl
	f.init(100, 0)
	f.maxRecvNext = 200
	f.commitMaxRecv()
	assert.EqualValues(t, 200, f.maxRecv)
	assert.EqualValues(t, 300, f.maxRecvNext)
}
