package quic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClientHasEmptyConnTable(t *testing.T) {
	c := NewClient(nil)
	assert.NotNil(t, c.config)
	assert.Empty(t, c.conns)
	assert.Nil(t, c.LocalAddr())
}

func TestClientSetHandlerAndLogger(t *testing.T) {
	c := NewClient(nil)
	c.SetHandler(nil)
	c.SetLogger(0, nil)
	assert.Nil(t, c.handler)
}
