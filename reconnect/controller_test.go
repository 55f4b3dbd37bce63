package reconnect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedConn serves the queued messages and then fails with readErr.
type scriptedConn struct {
	mu       sync.Mutex
	messages [][]byte
	readErr  error
	closed   chan struct{}
	once     sync.Once
}

func newScriptedConn(readErr error, messages ...[]byte) *scriptedConn {
	return &scriptedConn{
		messages: messages,
		readErr:  readErr,
		closed:   make(chan struct{}),
	}
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if len(c.messages) > 0 {
		msg := c.messages[0]
		c.messages = c.messages[1:]
		c.mu.Unlock()
		return websocket.TextMessage, msg, nil
	}
	c.mu.Unlock()

	// Block until closed so the controller sees the error only once.
	select {
	case <-c.closed:
	case <-time.After(10 * time.Millisecond):
	}

	return 0, nil, c.readErr
}

func (c *scriptedConn) WriteJSON(any) error { return nil }

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []Conn
	errs  []error
	dials int
}

func (d *fakeDialer) dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if len(d.errs) > 0 && d.errs[0] != nil {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	if len(d.errs) > 0 {
		d.errs = d.errs[1:]
	}

	if len(d.conns) == 0 {
		return nil, assert.AnError
	}

	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dials
}

func testController(dial Dialer, maxAttempts int, onState func(State)) *Controller {
	b := NewBackoff(time.Millisecond, 5*time.Millisecond, maxAttempts)
	b.jitter = func() float64 { return 1 }

	return NewController(dial, b, 0, nil, onState, zap.NewNop())
}

func runToCompletion(t *testing.T, c *Controller) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not terminate")
	}
}

func TestNormalClosureDoesNotReconnect(t *testing.T) {
	closeErr := &websocket.CloseError{Code: websocket.CloseNormalClosure}
	d := &fakeDialer{conns: []Conn{newScriptedConn(closeErr)}}

	var states []State
	c := testController(d.dial, 3, func(s State) { states = append(states, s) })

	runToCompletion(t, c)

	assert.Equal(t, 1, d.Dials())
	assert.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, states)
}

func TestAbnormalCloseRetriesUntilExhausted(t *testing.T) {
	abnormal := &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	d := &fakeDialer{conns: []Conn{newScriptedConn(abnormal)}}

	c := testController(d.dial, 3, nil)

	runToCompletion(t, c)

	// One successful dial plus MaxAttempts failed redials.
	assert.Equal(t, 4, d.Dials())
}

func TestAttemptCounterResetsOnSuccess(t *testing.T) {
	normal := &websocket.CloseError{Code: websocket.CloseNormalClosure}
	abnormal := &websocket.CloseError{Code: websocket.CloseAbnormalClosure}

	// Fail twice, connect and drop abnormally, fail once, then connect
	// and close normally. The two leading failures must not count
	// against the post-success retry budget.
	d := &fakeDialer{
		conns: []Conn{newScriptedConn(abnormal), newScriptedConn(normal)},
		errs:  []error{assert.AnError, assert.AnError, nil, assert.AnError, nil},
	}

	c := testController(d.dial, 3, nil)

	runToCompletion(t, c)

	assert.Equal(t, 5, d.Dials())
}

func TestManualCloseSuppressesReconnect(t *testing.T) {
	abnormal := &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	conn := newScriptedConn(abnormal)
	d := &fakeDialer{conns: []Conn{conn}}

	var mu sync.Mutex
	var states []State
	c := testController(d.dial, 3, func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Close()
	}()

	runToCompletion(t, c)

	assert.Equal(t, 1, d.Dials())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StateDisconnected, states[len(states)-1])
}

func TestCloseDuringBackoffSuppressesRedial(t *testing.T) {
	d := &fakeDialer{}

	b := NewBackoff(200*time.Millisecond, time.Second, 10)
	b.jitter = func() float64 { return 1 }
	c := NewController(d.dial, b, 0, nil, nil, zap.NewNop())

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	// Close lands while the controller sleeps out the first backoff
	// delay; it must wake up and stop, not dial again.
	require.Eventually(t, func() bool { return d.Dials() == 1 }, time.Second, time.Millisecond)
	c.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("controller did not stop after close")
	}

	assert.Equal(t, 1, d.Dials())
}

func TestEventsReachCallback(t *testing.T) {
	normal := &websocket.CloseError{Code: websocket.CloseNormalClosure}
	conn := newScriptedConn(normal, []byte(`{"type":"notification"}`), []byte(`{"type":"presence"}`))
	d := &fakeDialer{conns: []Conn{conn}}

	var events [][]byte
	b := NewBackoff(time.Millisecond, 5*time.Millisecond, 3)
	c := NewController(d.dial, b, 0, func(data []byte) {
		events = append(events, data)
	}, nil, zap.NewNop())

	runToCompletion(t, c)

	require.Len(t, events, 2)
	assert.JSONEq(t, `{"type":"notification"}`, string(events[0]))
	assert.JSONEq(t, `{"type":"presence"}`, string(events[1]))
}

func TestContextCancelStops(t *testing.T) {
	d := &fakeDialer{}

	b := NewBackoff(50*time.Millisecond, time.Second, 100)
	c := NewController(d.dial, b, 0, nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("controller did not stop on context cancel")
	}
}
