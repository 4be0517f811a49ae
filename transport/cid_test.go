package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnIDManagerIssue(t *testing.T) {
	var m connIDManager
	m.init([]byte("0123456789abcdef0123456789abcdef"))
	m.peerLimit = 2

	f1, ok := m.issue([]byte{1, 2, 3})
	require.True(t, ok)
	assert.EqualValues(t, 1, f1.sequenceNumber)
	assert.Equal(t, []byte{1, 2, 3}, f1.connectionID)

	f2, ok := m.issue([]byte{4, 5, 6})
	require.True(t, ok)
	assert.EqualValues(t, 2, f2.sequenceNumber)

	// Peer limit already reached: issuing a third CID is refused.
	_, ok = m.issue([]byte{7, 8, 9})
	assert.False(t, ok)
}

func TestConnIDManagerStatelessResetTokenDeterministic(t *testing.T) {
	var m connIDManager
	m.init([]byte("a-fixed-secret-for-this-test-xx"))
	cid := []byte{9, 9, 9}
	tok1 := m.statelessResetToken(cid)
	tok2 := m.statelessResetToken(cid)
	assert.Equal(t, tok1, tok2)

	other := m.statelessResetToken([]byte{1, 2, 3})
	assert.NotEqual(t, tok1, other)
}

func TestConnIDManagerAddRemote(t *testing.T) {
	var m connIDManager
	m.init([]byte("0123456789abcdef0123456789abcdef"))

	f := &newConnectionIDFrame{
		sequenceNumber: 1,
		connectionID:   []byte{1, 2, 3, 4},
	}
	retired, err := m.addRemote(f, 4)
	require.NoError(t, err)
	assert.Empty(t, retired)
	require.Len(t, m.remote, 1)

	// Re-adding the same sequence number is a no-op, not a duplicate.
	retired, err = m.addRemote(f, 4)
	require.NoError(t, err)
	assert.Empty(t, retired)
	assert.Len(t, m.remote, 1)
}

func TestConnIDManagerAddRemoteRetiresObsoleted(t *testing.T) {
	var m connIDManager
	m.init([]byte("0123456789abcdef0123456789abcdef"))

	_, err := m.addRemote(&newConnectionIDFrame{sequenceNumber: 1, connectionID: []byte{1}}, 4)
	require.NoError(t, err)
	_, err = m.addRemote(&newConnectionIDFrame{sequenceNumber: 2, connectionID: []byte{2}}, 4)
	require.NoError(t, err)

	retired, err := m.addRemote(&newConnectionIDFrame{
		sequenceNumber: 3,
		connectionID:   []byte{3},
		retirePriorTo:  3,
	}, 4)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, retired)
}

func TestConnIDManagerRetireLocal(t *testing.T) {
	var m connIDManager
	m.init([]byte("0123456789abcdef0123456789abcdef"))
	m.peerLimit = 4
	f, ok := m.issue([]byte{1, 2, 3})
	require.True(t, ok)

	m.retireLocal(f.sequenceNumber)
	require.Len(t, m.local, 1)
	assert.True(t, m.local[0].retired)
}

func TestConnIDManagerResetTokens(t *testing.T) {
	var m connIDManager
	m.init([]byte("0123456789abcdef0123456789abcdef"))

	_, err := m.addRemote(&newConnectionIDFrame{
		sequenceNumber: 1,
		connectionID:   []byte{1, 2, 3},
		resetToken:     [16]byte{0xaa},
	}, 4)
	require.NoError(t, err)
	_, err = m.addRemote(&newConnectionIDFrame{
		sequenceNumber: 2,
		connectionID:   []byte{4, 5, 6},
		resetToken:     [16]byte{0xbb},
	}, 4)
	require.NoError(t, err)

	tokens := m.resetTokens()
	require.Len(t, tokens, 2)
	assert.ElementsMatch(t, [][16]byte{{0xaa}, {0xbb}}, tokens)
}

func TestConnIDManagerNextUnusedRemote(t *testing.T) {
	var m connIDManager
	m.init([]byte("0123456789abcdef0123456789abcdef"))

	current := []byte{9, 9, 9}
	_, err := m.addRemote(&newConnectionIDFrame{sequenceNumber: 0, connectionID: current}, 4)
	require.NoError(t, err)
	_, err = m.addRemote(&newConnectionIDFrame{sequenceNumber: 1, connectionID: []byte{1, 1, 1}}, 4)
	require.NoError(t, err)

	entry := m.nextUnusedRemote(current)
	require.NotNil(t, entry)
	assert.NotEqual(t, current, entry.cid)
}
