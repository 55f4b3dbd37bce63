package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/collabhub/realtime/domain"
	"github.com/collabhub/realtime/http/middleware"
	"github.com/collabhub/realtime/presence"
	"github.com/collabhub/realtime/registry"
	"github.com/collabhub/realtime/router"
	"go.uber.org/zap"
)

// wsConn adapts a gorilla connection to the registry. All JSON frames
// leave through the registry's write pump; Ping uses WriteControl, which
// gorilla allows concurrently with other writes.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Ping(deadline time.Time) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

type Realtime struct {
	upgrader         websocket.Upgrader
	registry         *registry.Registry
	tracker          *presence.Tracker
	forwarder        domain.ChatForwarder
	publishEvent     domain.PublishEventUseCase
	router           *router.Router
	heartbeatTimeout time.Duration
	log              *zap.Logger
}

func NewRealtime(
	reg *registry.Registry,
	tracker *presence.Tracker,
	forwarder domain.ChatForwarder,
	publishEvent domain.PublishEventUseCase,
	rt *router.Router,
	heartbeatTimeout time.Duration,
	log *zap.Logger,
) *Realtime {
	return &Realtime{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  5120,
			WriteBufferSize: 5120,
		},
		registry:         reg,
		tracker:          tracker,
		forwarder:        forwarder,
		publishEvent:     publishEvent,
		router:           rt,
		heartbeatTimeout: heartbeatTimeout,
		log:              log,
	}
}

// WebSocket owns one connection end to end: handshake, registration,
// the read loop, and teardown. Outbound frames never travel on this
// goroutine; they go through the registry pump.
func (h *Realtime) WebSocket(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		abortWithInternalError(c, h.log, err)
		return
	}

	ws := &wsConn{conn: conn}

	id, err := h.registry.Register(userID, ws)
	if err != nil {
		if errors.Is(err, domain.ErrResourceExhausted) {
			// Retryable: the client backs off and tries again.
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server at capacity"),
				time.Now().Add(time.Second),
			)
		}

		conn.Close()
		return
	}

	defer h.registry.Unregister(id)

	conn.SetReadDeadline(time.Now().Add(h.heartbeatTimeout))
	conn.SetPongHandler(func(string) error {
		h.registry.Touch(id)
		return conn.SetReadDeadline(time.Now().Add(h.heartbeatTimeout))
	})

	h.readLoop(c.Request.Context(), id, conn)
}

func (h *Realtime) readLoop(ctx context.Context, id domain.ConnID, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				h.log.Debug("close frame received",
					zap.Uint64("userId", id.User),
					zap.Int("code", closeErr.Code),
				)
			} else {
				h.log.Debug("read from peer failed",
					zap.Uint64("userId", id.User),
					zap.Error(err),
				)
			}

			return
		}

		conn.SetReadDeadline(time.Now().Add(h.heartbeatTimeout))

		frame, err := domain.DecodeInboundFrame(data)
		if err != nil {
			h.registry.Enqueue(id, domain.NewErrorFrame(err.Error()))
			continue
		}

		h.dispatch(ctx, id, frame)
	}
}

func (h *Realtime) dispatch(ctx context.Context, id domain.ConnID, frame *domain.InboundFrame) {
	switch frame.Kind {
	case domain.FrameHeartbeat:
		h.registry.Touch(id)
		h.registry.Enqueue(id, domain.NewHeartbeatResponse())

	case domain.FrameActivity:
		h.applyActivity(id.User, frame.Activity)

	case domain.FrameMessage:
		h.forwardMessage(ctx, id, frame.Message)

	case domain.FrameResume:
		h.router.Resume(id, frame.Resume.LastEventID)
	}
}

func (h *Realtime) applyActivity(userID uint64, frame *domain.ActivityFrame) {
	kind := domain.SignalActivity

	switch frame.Signal {
	case domain.ActivityVisible:
		kind = domain.SignalVisible
	case domain.ActivityHidden:
		kind = domain.SignalHidden
	}

	_, err := h.tracker.Apply(userID, domain.PresenceSignal{Kind: kind, At: frame.Timestamp})
	if err != nil && !errors.Is(err, domain.ErrStaleUpdate) {
		h.log.Warn("apply activity signal failed",
			zap.Uint64("userId", userID),
			zap.Error(err),
		)
	}
}

// forwardMessage hands the message to the chat collaborator and, only
// after that succeeds, publishes the fan-out event. The author's own
// connections get the content echo directly; the notification path
// suppresses self-origin on its own.
func (h *Realtime) forwardMessage(ctx context.Context, id domain.ConnID, frame *domain.MessageFrame) {
	event, err := h.forwarder.Forward(ctx, id.User, frame)
	if err != nil {
		h.log.Error("forward message failed",
			zap.Uint64("userId", id.User),
			zap.Error(err),
		)
		h.registry.Enqueue(id, domain.NewErrorFrame("message not delivered"))
		return
	}

	for _, connID := range h.registry.ConnectionsFor(id.User) {
		h.registry.Enqueue(connID, event)
	}

	audience := domain.Audience{WorkItemID: frame.WorkItemID}
	if err = h.publishEvent.Execute(ctx, event, audience); err != nil {
		h.log.Error("publish message event failed",
			zap.Uint64("userId", id.User),
			zap.Uint64("eventId", event.ID),
			zap.Error(err),
		)
	}
}
