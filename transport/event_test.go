package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStreamEvents(t *testing.T) {
	assert.Equal(t, Event{Type: EventStream, StreamID: 4}, newStreamRecvEvent(4))
	assert.Equal(t, Event{Type: EventStreamComplete, StreamID: 4}, newStreamCompleteEvent(4))
	assert.Equal(t, Event{Type: EventStreamReset, StreamID: 4, ErrorCode: 2}, newStreamResetEvent(4, 2))
	assert.Equal(t, Event{Type: EventStreamStop, StreamID: 4, ErrorCode: 3}, newStreamStopEvent(4, 3))
}
