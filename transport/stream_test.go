package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStreamLocal(t *testing.T) {
	// Client-initiated IDs are even.
	assert.True(t, isStreamLocal(0, true))
	assert.False(t, isStreamLocal(0, false))
	assert.True(t, isStreamLocal(1, false))
	assert.False(t, isStreamLocal(1, true))
}

func TestIsStreamBidi(t *testing.T) {
	assert.True(t, isStreamBidi(0))
	assert.True(t, isStreamBidi(1))
	assert.False(t, isStreamBidi(2))
	assert.False(t, isStreamBidi(3))
}

func TestStreamInitialID(t *testing.T) {
	assert.EqualValues(t, 0, streamInitialID(true, true))
	assert.EqualValues(t, 1, streamInitialID(false, true))
	assert.EqualValues(t, 2, streamInitialID(true, false))
	assert.EqualValues(t, 3, streamInitialID(false, false))
}

func TestSendBufferWriteAndPop(t *testing.T) {
	var s sendBuffer
	n, err := s.write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	data, offset, fin := s.pop(3)
	assert.Equal(t, []byte("hel"), data)
	assert.EqualValues(t, 0, offset)
	assert.False(t, fin)

	data, offset, fin = s.pop(10)
	assert.Equal(t, []byte("lo"), data)
	assert.EqualValues(t, 3, offset)
	assert.False(t, fin)
}

func TestSendBufferCloseSetsFin(t *testing.T) {
	var s sendBuffer
	s.write([]byte("hi"))
	s.close()

	_, err := s.write([]byte("more"))
	assert.Error(t, err, "write after close must fail")

	data, _, fin := s.pop(10)
	assert.Equal(t, []byte("hi"), data)
	assert.True(t, fin)
}

func TestSendBufferAckPrunesPrefix(t *testing.T) {
	var s sendBuffer
	s.write([]byte("hello world"))
	s.pop(11)

	s.ack(0, 5)
	assert.EqualValues(t, 5, s.ackedUpTo)
	assert.EqualValues(t, 5, s.baseOffset)
}

func TestSendBufferCompleteRequiresFullAck(t *testing.T) {
	var s sendBuffer
	s.write([]byte("abc"))
	s.close()
	assert.False(t, s.complete())

	s.ack(0, 3)
	assert.True(t, s.complete())
}

func TestSendBufferPushReoffersLostData(t *testing.T) {
	var s sendBuffer
	s.write([]byte("abcdef"))
	s.pop(6)

	require.NoError(t, s.push([]byte("abc"), 0, false))
	data, offset, _ := s.pop(10)
	assert.Equal(t, []byte("abc"), data, "lost range must be offered before new data")
	assert.EqualValues(t, 0, offset)
}

func TestRecvBufferPushAndRead(t *testing.T) {
	var r recvBuffer
	require.NoError(t, r.push([]byte("world"), 5, false))
	require.NoError(t, r.push([]byte("hello"), 0, false))

	assert.True(t, r.dataReady())
	buf := make([]byte, 5)
	n, err := r.read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	buf2 := make([]byte, 5)
	n, err = r.read(buf2)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf2))
}

func TestRecvBufferPushDiscardsDuplicate(t *testing.T) {
	var r recvBuffer
	require.NoError(t, r.push([]byte("hello"), 0, false))
	buf := make([]byte, 5)
	r.read(buf)

	// Fully-delivered range pushed again must be a silent no-op.
	require.NoError(t, r.push([]byte("hello"), 0, false))
	assert.False(t, r.dataReady())
}

func TestRecvBufferPushRejectsFinalSizeMismatch(t *testing.T) {
	var r recvBuffer
	require.NoError(t, r.push([]byte("hello"), 0, true))

	err := r.push([]byte("x"), 10, true)
	assert.Error(t, err)
}

func TestRecvBufferFin(t *testing.T) {
	var r recvBuffer
	require.NoError(t, r.push([]byte("hi"), 0, true))
	assert.False(t, r.fin())

	buf := make([]byte, 2)
	r.read(buf)
	assert.True(t, r.fin())
}

func TestRecvBufferReadAll(t *testing.T) {
	var r recvBuffer
	require.NoError(t, r.push([]byte("abc"), 0, false))
	got := r.readAll()
	assert.Equal(t, []byte("abc"), got)
	assert.Nil(t, r.readAll())
}

func TestStreamRecvResetChargesFinalSizeOnce(t *testing.T) {
	var r streamRecv
	n, err := r.reset(100)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, recvStateResetRecvd, r.state)

	// A second reset at the same final size charges nothing more.
	n, err = r.reset(100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStreamRecvResetRejectsMismatch(t *testing.T) {
	var r streamRecv
	r.buf.finalSet = true
	r.buf.finalSize = 50
	_, err := r.reset(100)
	assert.Error(t, err)
}
