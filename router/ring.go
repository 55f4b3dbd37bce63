package router

import (
	"context"
	"sync"
	"time"

	"github.com/collabhub/realtime/domain"
)

// Ring keeps the last few events per user for redelivery to a
// reconnecting client. It is a short in-memory buffer, not a durable
// log: the persisted notification store owns durability.
type Ring struct {
	mu    sync.Mutex
	size  int
	ttl   time.Duration
	users map[uint64][]ringEntry
}

type ringEntry struct {
	event    *domain.NotificationEvent
	appended time.Time
}

func NewRing(size int, ttl time.Duration) *Ring {
	return &Ring{
		size:  size,
		ttl:   ttl,
		users: make(map[uint64][]ringEntry),
	}
}

func (r *Ring) Append(userID uint64, event *domain.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := append(r.users[userID], ringEntry{event: event, appended: time.Now()})
	if len(entries) > r.size {
		entries = entries[len(entries)-r.size:]
	}

	r.users[userID] = entries
}

// Since returns the retained events newer than lastEventID, oldest
// first. Entries past the TTL are dropped on the way out.
func (r *Ring) Since(userID uint64, lastEventID uint64) []*domain.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)

	var out []*domain.NotificationEvent
	for _, e := range r.users[userID] {
		if e.appended.Before(cutoff) {
			continue
		}
		if e.event.ID > lastEventID {
			out = append(out, e.event)
		}
	}

	return out
}

// RunGC drops expired entries until ctx ends, so buffers of users who
// never reconnect do not pile up.
func (r *Ring) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.collect(now)
		}
	}
}

func (r *Ring) collect(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.ttl)

	for userID, entries := range r.users {
		kept := entries[:0]
		for _, e := range entries {
			if !e.appended.Before(cutoff) {
				kept = append(kept, e)
			}
		}

		if len(kept) == 0 {
			delete(r.users, userID)
			continue
		}

		r.users[userID] = kept
	}
}
