package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/collabhub/realtime/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []any

	writeErr error
	closed   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return c.writeErr
	}

	c.frames = append(c.frames, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

func (c *fakeConn) Frames() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]any(nil), c.frames...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func newTestRegistry(capacity int, hooks Hooks) *Registry {
	return New(capacity, hooks, zap.NewNop())
}

func TestRegisterAndLookup(t *testing.T) {
	r := newTestRegistry(10, Hooks{})

	id1, err := r.Register(1, &fakeConn{})
	require.NoError(t, err)

	id2, err := r.Register(1, &fakeConn{})
	require.NoError(t, err)

	ids := r.ConnectionsFor(1)
	assert.ElementsMatch(t, []domain.ConnID{id1, id2}, ids)
	assert.Empty(t, r.ConnectionsFor(2))
	assert.Equal(t, 2, r.Len())
}

func TestCapacityRejectsOverflowOnly(t *testing.T) {
	r := newTestRegistry(2, Hooks{})

	id1, err := r.Register(1, &fakeConn{})
	require.NoError(t, err)

	_, err = r.Register(2, &fakeConn{})
	require.NoError(t, err)

	_, err = r.Register(3, &fakeConn{})
	require.ErrorIs(t, err, domain.ErrResourceExhausted)

	// Existing connections stay fully functional.
	require.NoError(t, r.Enqueue(id1, "still alive"))
	assert.Equal(t, 2, r.Len())

	// Freed capacity is usable again.
	r.Unregister(id1)
	_, err = r.Register(3, &fakeConn{})
	require.NoError(t, err)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	offline := 0

	r := newTestRegistry(10, Hooks{
		UserOffline: func(uint64, time.Time) { offline++ },
	})

	id, err := r.Register(1, conn)
	require.NoError(t, err)

	r.Unregister(id)
	r.Unregister(id)
	r.Unregister(domain.ConnID{User: 99, Seq: 99})

	assert.True(t, conn.Closed())
	assert.Equal(t, 1, offline)
	assert.Equal(t, 0, r.Len())
}

func TestUserLifecycleHooks(t *testing.T) {
	var online, offline []uint64

	r := newTestRegistry(10, Hooks{
		UserOnline:  func(userID uint64, _ time.Time) { online = append(online, userID) },
		UserOffline: func(userID uint64, _ time.Time) { offline = append(offline, userID) },
	})

	// Two tabs: online fires once, offline only when the last one goes.
	id1, err := r.Register(7, &fakeConn{})
	require.NoError(t, err)
	id2, err := r.Register(7, &fakeConn{})
	require.NoError(t, err)

	assert.Equal(t, []uint64{7}, online)

	r.Unregister(id1)
	assert.Empty(t, offline)

	r.Unregister(id2)
	assert.Equal(t, []uint64{7}, offline)

	// Reconnect re-enters through the online hook.
	_, err = r.Register(7, &fakeConn{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 7}, online)
}

func TestTouchAndLastPong(t *testing.T) {
	r := newTestRegistry(10, Hooks{})

	id, err := r.Register(1, &fakeConn{})
	require.NoError(t, err)

	before, ok := r.LastPong(id)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	r.Touch(id)

	after, ok := r.LastPong(id)
	require.True(t, ok)
	assert.True(t, after.After(before))

	// Touching a reaped connection is a no-op, not a panic.
	r.Unregister(id)
	r.Touch(id)

	_, ok = r.LastPong(id)
	assert.False(t, ok)
}

func TestEnqueueDeliversInOrder(t *testing.T) {
	conn := &fakeConn{}
	r := newTestRegistry(10, Hooks{})

	id, err := r.Register(1, conn)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, r.Enqueue(id, i))
	}

	require.Eventually(t, func() bool {
		return len(conn.Frames()) == 20
	}, time.Second, time.Millisecond)

	frames := conn.Frames()
	for i, frame := range frames {
		assert.Equal(t, i, frame)
	}
}

type stuckConn struct {
	fakeConn
	unblock chan struct{}
}

func (c *stuckConn) WriteJSON(v any) error {
	<-c.unblock
	return c.fakeConn.WriteJSON(v)
}

func TestEnqueueFullBufferFails(t *testing.T) {
	conn := &stuckConn{unblock: make(chan struct{})}
	defer close(conn.unblock)

	r := newTestRegistry(10, Hooks{})
	r.sendBuffer = 2

	id, err := r.Register(1, conn)
	require.NoError(t, err)

	// The pump wedges on the first frame; once the buffer backs up the
	// enqueue fails instead of blocking the publisher.
	var enqueueErr error
	for i := 0; i < 4; i++ {
		if enqueueErr = r.Enqueue(id, i); enqueueErr != nil {
			break
		}
	}

	require.ErrorIs(t, enqueueErr, domain.ErrDeliveryFailed)
}

func TestFailedWriteUnregistersConnection(t *testing.T) {
	conn := &fakeConn{writeErr: assert.AnError}
	offline := make(chan uint64, 1)

	r := newTestRegistry(10, Hooks{
		UserOffline: func(userID uint64, _ time.Time) { offline <- userID },
	})

	id, err := r.Register(1, conn)
	require.NoError(t, err)

	require.NoError(t, r.Enqueue(id, "doomed"))

	select {
	case userID := <-offline:
		assert.Equal(t, uint64(1), userID)
	case <-time.After(time.Second):
		t.Fatal("connection was not reaped after failed write")
	}

	assert.Empty(t, r.ConnectionsFor(1))
}

func TestHooksStayOrderedUnderChurn(t *testing.T) {
	var (
		mu    sync.Mutex
		edges []string
	)

	r := newTestRegistry(1000, Hooks{
		UserOnline: func(uint64, time.Time) {
			mu.Lock()
			edges = append(edges, "online")
			mu.Unlock()
		},
		UserOffline: func(uint64, time.Time) {
			mu.Lock()
			edges = append(edges, "offline")
			mu.Unlock()
		},
	})

	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := 0; i < 100; i++ {
				id, err := r.Register(1, &fakeConn{})
				if err != nil {
					continue
				}
				r.Unregister(id)
			}
		}()
	}

	wg.Wait()

	// Edges must strictly alternate: a rapid reconnect racing a final
	// unregister can never record offline after the newer online.
	require.NotEmpty(t, edges)
	for i, edge := range edges {
		want := "online"
		if i%2 == 1 {
			want = "offline"
		}
		require.Equalf(t, want, edge, "edge %d out of order", i)
	}
	assert.Equal(t, 0, len(edges)%2)
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	r := newTestRegistry(1000, Hooks{})

	var wg sync.WaitGroup

	for u := uint64(1); u <= 8; u++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()

			for i := 0; i < 50; i++ {
				id, err := r.Register(userID, &fakeConn{})
				require.NoError(t, err)
				r.ConnectionsFor(userID)
				r.Touch(id)
				r.Unregister(id)
			}
		}(u)
	}

	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
