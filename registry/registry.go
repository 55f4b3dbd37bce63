package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/collabhub/realtime/domain"
	"go.uber.org/zap"
)

const shardCount = 16

// defaultSendBuffer bounds the per-connection outbound queue. A full
// queue fails the enqueue instead of blocking the publisher.
const defaultSendBuffer = 64

type connection struct {
	id        domain.ConnID
	ws        domain.WebsocketConnection
	createdAt time.Time
	lastPong  atomic.Int64

	out  chan any
	done chan struct{}
	once sync.Once
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// pump is the single delivery path for its connection: frames leave in
// enqueue order, so per-connection ordering holds with no extra locking.
func (c *connection) pump(r *Registry) {
	for {
		select {
		case frame := <-c.out:
			if err := c.ws.WriteJSON(frame); err != nil {
				r.log.Debug("write to connection failed",
					zap.Uint64("userId", c.id.User),
					zap.Uint64("seq", c.id.Seq),
					zap.Error(err),
				)
				r.Unregister(c.id)
				return
			}
		case <-c.done:
			return
		}
	}
}

type shard struct {
	mu    sync.RWMutex
	users map[uint64]map[uint64]*connection
}

// Hooks observe user-level lifecycle edges: first connection registered
// and last connection gone. The presence tracker hangs off these.
// Invocations for one user are serialized and ordered with the edges,
// so a reconnect racing a final unregister never reports
// offline-after-online.
type Hooks struct {
	UserOnline  func(userID uint64, at time.Time)
	UserOffline func(userID uint64, at time.Time)
}

// Registry is the live connection table. Shards are keyed by user id so
// unrelated users never contend on one lock.
type Registry struct {
	shards [shardCount]shard

	// hookMu keeps the lifecycle-edge decision and the hook call one
	// atomic step per user, so hooks fire in edge order.
	hookMu [shardCount]sync.Mutex

	capacity   int64
	count      atomic.Int64
	seq        atomic.Uint64
	sendBuffer int
	hooks      Hooks
	log        *zap.Logger
}

func New(capacity int, hooks Hooks, log *zap.Logger) *Registry {
	r := &Registry{
		capacity:   int64(capacity),
		sendBuffer: defaultSendBuffer,
		hooks:      hooks,
		log:        log,
	}

	for i := range r.shards {
		r.shards[i].users = make(map[uint64]map[uint64]*connection)
	}

	return r
}

func (r *Registry) shardFor(userID uint64) *shard {
	return &r.shards[userID%shardCount]
}

func (r *Registry) hookLock(userID uint64) *sync.Mutex {
	return &r.hookMu[userID%shardCount]
}

// Register adds a connection under the user and starts its write pump.
func (r *Registry) Register(userID uint64, ws domain.WebsocketConnection) (domain.ConnID, error) {
	if r.count.Add(1) > r.capacity {
		r.count.Add(-1)
		return domain.ConnID{}, domain.ErrResourceExhausted
	}

	now := time.Now()

	c := &connection{
		id:        domain.ConnID{User: userID, Seq: r.seq.Add(1)},
		ws:        ws,
		createdAt: now,
		out:       make(chan any, r.sendBuffer),
		done:      make(chan struct{}),
	}
	c.lastPong.Store(now.UnixNano())

	hm := r.hookLock(userID)
	hm.Lock()
	defer hm.Unlock()

	s := r.shardFor(userID)

	s.mu.Lock()
	conns, ok := s.users[userID]
	if !ok {
		conns = make(map[uint64]*connection)
		s.users[userID] = conns
	}
	first := len(conns) == 0
	conns[c.id.Seq] = c
	s.mu.Unlock()

	go c.pump(r)

	if first && r.hooks.UserOnline != nil {
		r.hooks.UserOnline(userID, now)
	}

	return c.id, nil
}

// Unregister removes the connection and closes its transport. Calling it
// for an unknown or already-removed id is a no-op.
func (r *Registry) Unregister(id domain.ConnID) {
	hm := r.hookLock(id.User)
	hm.Lock()
	defer hm.Unlock()

	s := r.shardFor(id.User)

	s.mu.Lock()
	conns, ok := s.users[id.User]
	if !ok {
		s.mu.Unlock()
		return
	}

	c, ok := conns[id.Seq]
	if !ok {
		s.mu.Unlock()
		return
	}

	delete(conns, id.Seq)
	last := len(conns) == 0
	if last {
		delete(s.users, id.User)
	}
	s.mu.Unlock()

	r.count.Add(-1)
	c.close()

	if last && r.hooks.UserOffline != nil {
		r.hooks.UserOffline(id.User, time.Now())
	}
}

// ConnectionsFor returns a point-in-time snapshot of the user's live
// connection ids.
func (r *Registry) ConnectionsFor(userID uint64) []domain.ConnID {
	s := r.shardFor(userID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := s.users[userID]
	if len(conns) == 0 {
		return nil
	}

	ids := make([]domain.ConnID, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.id)
	}

	return ids
}

func (r *Registry) get(id domain.ConnID) *connection {
	s := r.shardFor(id.User)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.users[id.User][id.Seq]
}

// Touch records a heartbeat response. An unknown id means the connection
// was already reaped; that is logged and ignored.
func (r *Registry) Touch(id domain.ConnID) {
	c := r.get(id)
	if c == nil {
		r.log.Debug("touch on unknown connection",
			zap.Uint64("userId", id.User),
			zap.Uint64("seq", id.Seq),
		)
		return
	}

	c.lastPong.Store(time.Now().UnixNano())
}

func (r *Registry) LastPong(id domain.ConnID) (time.Time, bool) {
	c := r.get(id)
	if c == nil {
		return time.Time{}, false
	}

	return time.Unix(0, c.lastPong.Load()), true
}

// Enqueue queues a frame on the connection's write pump without blocking.
func (r *Registry) Enqueue(id domain.ConnID, frame any) error {
	c := r.get(id)
	if c == nil {
		return domain.ErrConnectionNotFound
	}

	select {
	case <-c.done:
		return domain.ErrConnectionNotFound
	default:
	}

	select {
	case c.out <- frame:
		return nil
	default:
		return domain.ErrDeliveryFailed
	}
}

// Each visits a snapshot of every live connection. The callback runs
// outside the shard locks.
func (r *Registry) Each(f func(id domain.ConnID, lastPong time.Time, ws domain.WebsocketConnection)) {
	for i := range r.shards {
		s := &r.shards[i]

		s.mu.RLock()
		snapshot := make([]*connection, 0)
		for _, conns := range s.users {
			for _, c := range conns {
				snapshot = append(snapshot, c)
			}
		}
		s.mu.RUnlock()

		for _, c := range snapshot {
			f(c.id, time.Unix(0, c.lastPong.Load()), c.ws)
		}
	}
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	return int(r.count.Load())
}
