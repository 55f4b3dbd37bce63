package router

import (
	"testing"
	"time"

	"github.com/collabhub/realtime/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingCapsPerUserEntries(t *testing.T) {
	ring := NewRing(3, time.Minute)

	for i := uint64(1); i <= 5; i++ {
		ring.Append(2, &domain.NotificationEvent{ID: i})
	}

	events := ring.Since(2, 0)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(3), events[0].ID)
	assert.Equal(t, uint64(5), events[2].ID)
}

func TestRingSinceFiltersByLastEventID(t *testing.T) {
	ring := NewRing(10, time.Minute)

	for i := uint64(1); i <= 4; i++ {
		ring.Append(2, &domain.NotificationEvent{ID: i})
	}

	events := ring.Since(2, 2)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(3), events[0].ID)
	assert.Equal(t, uint64(4), events[1].ID)
}

func TestRingSinceSkipsExpiredEntries(t *testing.T) {
	ring := NewRing(10, 10*time.Millisecond)

	ring.Append(2, &domain.NotificationEvent{ID: 1})
	time.Sleep(20 * time.Millisecond)
	ring.Append(2, &domain.NotificationEvent{ID: 2})

	events := ring.Since(2, 0)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].ID)
}

func TestRingIsolatesUsers(t *testing.T) {
	ring := NewRing(10, time.Minute)

	ring.Append(2, &domain.NotificationEvent{ID: 1})
	ring.Append(3, &domain.NotificationEvent{ID: 2})

	assert.Len(t, ring.Since(2, 0), 1)
	assert.Len(t, ring.Since(3, 0), 1)
	assert.Empty(t, ring.Since(4, 0))
}

func TestRingCollectDropsExpiredBuffers(t *testing.T) {
	ring := NewRing(10, 10*time.Millisecond)

	ring.Append(2, &domain.NotificationEvent{ID: 1})

	ring.collect(time.Now().Add(time.Second))

	assert.Empty(t, ring.users)
}
