package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundFrame(t *testing.T) {
	t.Run("heartbeat", func(t *testing.T) {
		frame, err := DecodeInboundFrame([]byte(`{"type":"heartbeat"}`))
		require.NoError(t, err)
		assert.Equal(t, FrameHeartbeat, frame.Kind)
	})

	t.Run("activity", func(t *testing.T) {
		at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		frame, err := DecodeInboundFrame([]byte(`{"type":"activity","signal":"input","timestamp":"2025-03-01T10:00:00Z"}`))
		require.NoError(t, err)
		require.NotNil(t, frame.Activity)
		assert.Equal(t, ActivityInput, frame.Activity.Signal)
		assert.True(t, frame.Activity.Timestamp.Equal(at))
	})

	t.Run("message", func(t *testing.T) {
		frame, err := DecodeInboundFrame([]byte(`{"type":"message","workItemId":42,"content":"hello"}`))
		require.NoError(t, err)
		require.NotNil(t, frame.Message)
		assert.Equal(t, uint64(42), frame.Message.WorkItemID)
		assert.Equal(t, "hello", frame.Message.Content)
	})

	t.Run("resume", func(t *testing.T) {
		frame, err := DecodeInboundFrame([]byte(`{"type":"resume","lastEventId":99}`))
		require.NoError(t, err)
		require.NotNil(t, frame.Resume)
		assert.Equal(t, uint64(99), frame.Resume.LastEventID)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := DecodeInboundFrame([]byte(`{"type":"telemetry"}`))
		require.ErrorIs(t, err, ErrUnknownFrame)
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		_, err := DecodeInboundFrame([]byte(`{`))
		require.Error(t, err)
	})
}
