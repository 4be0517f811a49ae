package quic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerWiresAcceptCallback(t *testing.T) {
	s := NewServer(nil)
	assert.NotNil(t, s.config)
	require.NotNil(t, s.accept)
	assert.Nil(t, s.LocalAddr())
}

func TestServerSetHandlerAndLogger(t *testing.T) {
	s := NewServer(nil)
	s.SetHandler(nil)
	s.SetLogger(0, nil)
	assert.Nil(t, s.handler)
}
