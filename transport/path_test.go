package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathStateAntiAmplification(t *testing.T) {
	p := newPathState(nil)
	assert.False(t, p.validated)

	p.onReceived(100)
	assert.True(t, p.canSend(300))
	assert.False(t, p.canSend(301))

	p.onSent(300)
	assert.False(t, p.canSend(1))

	p.onReceived(10)
	assert.True(t, p.canSend(30))
}

func TestPathStateValidatedSkipsLimit(t *testing.T) {
	p := newPathState(nil)
	p.validated = true
	assert.True(t, p.canSend(1<<20))
}

func TestPathStateChallengeResponse(t *testing.T) {
	p := newPathState(nil)
	f, err := p.startChallenge(time.Now())
	require.NoError(t, err)
	assert.True(t, p.pending)
	assert.False(t, p.validated)

	ok := p.onResponse(&pathResponseFrame{data: f.data})
	assert.True(t, ok)
	assert.True(t, p.validated)
	assert.False(t, p.pending)
}

func TestPathStateMismatchedResponseIgnored(t *testing.T) {
	p := newPathState(nil)
	_, err := p.startChallenge(time.Now())
	require.NoError(t, err)

	ok := p.onResponse(&pathResponseFrame{data: [8]byte{0xff}})
	assert.False(t, ok)
	assert.False(t, p.validated)
}
