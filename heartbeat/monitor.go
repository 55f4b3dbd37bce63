package heartbeat

import (
	"context"
	"time"

	"github.com/collabhub/realtime/domain"
	"github.com/collabhub/realtime/registry"
	"go.uber.org/zap"
)

// Pinger is implemented by connections that can carry a transport-level
// ping. Connections without one rely on client heartbeat frames alone.
type Pinger interface {
	Ping(deadline time.Time) error
}

// Monitor is the liveness check: it pings every connection on a fixed
// interval and reaps those whose last pong is older than the timeout.
// It shares no path with notification delivery, so a slow consumer
// cannot stall it.
type Monitor struct {
	registry *registry.Registry
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

func NewMonitor(reg *registry.Registry, interval, timeout time.Duration, log *zap.Logger) *Monitor {
	return &Monitor{
		registry: reg,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
}

// Run ticks until ctx ends. Each tick reaps then pings; a reaped last
// connection moves its user offline through the registry hook.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Sweep runs one monitor tick. A single missed deadline is enough to
// reap: the client reconnect controller re-establishes a fresh
// connection, there is no mid-cycle retry.
func (m *Monitor) Sweep(now time.Time) {
	var dead []domain.ConnID

	m.registry.Each(func(id domain.ConnID, lastPong time.Time, ws domain.WebsocketConnection) {
		if now.Sub(lastPong) > m.timeout {
			dead = append(dead, id)
			return
		}

		if p, ok := ws.(Pinger); ok {
			if err := p.Ping(now.Add(m.interval)); err != nil {
				m.log.Debug("ping failed",
					zap.Uint64("userId", id.User),
					zap.Uint64("seq", id.Seq),
					zap.Error(err),
				)
				dead = append(dead, id)
			}
		}
	})

	for _, id := range dead {
		m.log.Info("reaping dead connection",
			zap.Uint64("userId", id.User),
			zap.Uint64("seq", id.Seq),
		)
		m.registry.Unregister(id)
	}
}
