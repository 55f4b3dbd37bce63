package reconnect

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collabhub/realtime/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the connection status surfaced to the user.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// Conn is the slice of a websocket connection the controller drives.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(any) error
	Close() error
}

// Dialer opens one connection attempt.
type Dialer func(ctx context.Context) (Conn, error)

// Controller owns one logical channel's lifecycle: dialing, heartbeats,
// and reconnection with capped exponential backoff. A normal closure or
// an explicit Close suppresses reconnection; everything else retries.
type Controller struct {
	dial              Dialer
	backoff           Backoff
	heartbeatInterval time.Duration
	onEvent           func([]byte)
	onState           func(State)
	log               *zap.Logger

	manual    atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	conn Conn
}

func NewController(
	dial Dialer,
	backoff Backoff,
	heartbeatInterval time.Duration,
	onEvent func([]byte),
	onState func(State),
	log *zap.Logger,
) *Controller {
	return &Controller{
		dial:              dial,
		backoff:           backoff,
		heartbeatInterval: heartbeatInterval,
		onEvent:           onEvent,
		onState:           onState,
		closed:            make(chan struct{}),
		log:               log,
	}
}

// WebsocketDialer adapts gorilla's Dialer to the controller.
func WebsocketDialer(url string, header http.Header) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, err
		}

		return conn, nil
	}
}

func (c *Controller) setState(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}

// Close is a manual disconnect: no reconnect attempt follows it, and a
// backoff sleep in progress is interrupted.
func (c *Controller) Close() {
	c.manual.Store(true)
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Run drives the channel until ctx ends, Close is called, the server
// closes normally, or the attempt budget runs out.
func (c *Controller) Run(ctx context.Context) {
	attempt := 0

	c.setState(StateConnecting)

	for {
		if ctx.Err() != nil || c.manual.Load() {
			c.setState(StateDisconnected)
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil || c.manual.Load() {
				c.setState(StateDisconnected)
				return
			}

			attempt++
			if !c.sleepBeforeRetry(ctx, attempt, err) {
				return
			}
			continue
		}

		// Attempt counter resets only on a successful connect.
		attempt = 0
		c.setAlive(conn)
		c.setState(StateConnected)

		normalClose := c.serve(ctx, conn)

		if ctx.Err() != nil || c.manual.Load() || normalClose {
			c.setState(StateDisconnected)
			return
		}

		attempt++
		if !c.sleepBeforeRetry(ctx, attempt, errors.New("connection lost")) {
			return
		}
	}
}

func (c *Controller) setAlive(conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Controller) sleepBeforeRetry(ctx context.Context, attempt int, cause error) bool {
	if c.backoff.Exhausted(attempt) {
		c.log.Warn("reconnect attempts exhausted", zap.Int("attempts", attempt-1))
		c.setState(StateDisconnected)
		return false
	}

	delay := c.backoff.Delay(attempt)

	c.log.Info("scheduling reconnect",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
	c.setState(StateReconnecting)

	select {
	case <-ctx.Done():
		c.setState(StateDisconnected)
		return false
	case <-c.closed:
		c.setState(StateDisconnected)
		return false
	case <-time.After(delay):
		return true
	}
}

// serve reads until the connection drops. Heartbeats start here, so they
// restart only after a successful reconnect. Returns true for a normal
// closure, which must not trigger reconnection.
func (c *Controller) serve(ctx context.Context, conn Conn) bool {
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()

	go c.sendHeartbeats(heartbeatCtx, conn)

	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return true
			}

			return false
		}

		if c.onEvent != nil {
			c.onEvent(data)
		}
	}
}

func (c *Controller) sendHeartbeats(ctx context.Context, conn Conn) {
	if c.heartbeatInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := domain.HeartbeatFrame{Type: domain.FrameHeartbeat}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
