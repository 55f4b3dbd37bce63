package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/collabhub/realtime/domain"
	"go.uber.org/zap"
)

// Router resolves an audience to live connections and delivers one event
// to each, at most once per connection, consulting stored preferences
// and suppressing self-notifications on the way.
type Router struct {
	registry domain.ConnectionRegistry
	resolver domain.AudienceResolver
	prefs    domain.PreferenceReader
	ring     *Ring
	log      *zap.Logger
	now      func() time.Time
}

func New(
	reg domain.ConnectionRegistry,
	resolver domain.AudienceResolver,
	prefs domain.PreferenceReader,
	ring *Ring,
	log *zap.Logger,
) *Router {
	return &Router{
		registry: reg,
		resolver: resolver,
		prefs:    prefs,
		ring:     ring,
		log:      log,
		now:      time.Now,
	}
}

// Publish fans the event out to the resolved audience. A failure on one
// connection or one user never touches the rest of the audience.
func (r *Router) Publish(ctx context.Context, event *domain.NotificationEvent, audience domain.Audience) error {
	users, err := r.resolve(ctx, audience)
	if err != nil {
		r.log.Error("dropping event, audience unresolved",
			zap.Uint64("eventId", event.ID),
			zap.String("eventType", event.Type),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", domain.ErrAudienceResolution, err)
	}

	// A user can appear both in the resolved membership and the explicit
	// id set; each user is delivered to once per publish.
	seen := make(map[uint64]struct{}, len(users))

	for _, userID := range users {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}

		r.deliverToUser(ctx, userID, event)
	}

	return nil
}

func (r *Router) resolve(ctx context.Context, audience domain.Audience) ([]uint64, error) {
	if audience.WorkItemID == 0 {
		return audience.UserIDs, nil
	}

	users, err := r.resolver.Resolve(ctx, audience.WorkItemID)
	if err != nil {
		return nil, fmt.Errorf("resolve work item %d: %w", audience.WorkItemID, err)
	}

	return append(users, audience.UserIDs...), nil
}

func (r *Router) deliverToUser(ctx context.Context, userID uint64, event *domain.NotificationEvent) {
	// Self-origin never gets a notification; the author's chat content
	// still echoes back through the content channel separately.
	if userID == event.OriginUserID {
		return
	}

	prefs, err := r.prefs.Preferences(ctx, userID)
	if err != nil {
		r.log.Warn("preference lookup failed, skipping recipient",
			zap.Uint64("userId", userID),
			zap.Uint64("eventId", event.ID),
			zap.Error(err),
		)
		return
	}

	if !prefs.ShouldNotify(event, r.now()) {
		r.log.Debug("event suppressed by preferences",
			zap.Uint64("userId", userID),
			zap.Uint64("eventId", event.ID),
		)
		return
	}

	if r.ring != nil {
		r.ring.Append(userID, event)
	}

	for _, id := range r.registry.ConnectionsFor(userID) {
		if err := r.registry.Enqueue(id, event); err != nil {
			if errors.Is(err, domain.ErrDeliveryFailed) {
				// Full buffer means a dead or wedged client; drop the
				// connection rather than block the publisher.
				r.log.Warn("delivery failed, unregistering connection",
					zap.Uint64("userId", id.User),
					zap.Uint64("seq", id.Seq),
					zap.Uint64("eventId", event.ID),
				)
				r.registry.Unregister(id)
			}
		}
	}
}

// Broadcast pushes a frame to every live connection except the origin
// user's own. Presence updates travel this way.
func (r *Router) Broadcast(frame any, excludeUser uint64) {
	type walker interface {
		Each(func(id domain.ConnID, lastPong time.Time, ws domain.WebsocketConnection))
	}

	w, ok := r.registry.(walker)
	if !ok {
		return
	}

	var dead []domain.ConnID

	w.Each(func(id domain.ConnID, _ time.Time, _ domain.WebsocketConnection) {
		if id.User == excludeUser {
			return
		}

		if err := r.registry.Enqueue(id, frame); err != nil && errors.Is(err, domain.ErrDeliveryFailed) {
			dead = append(dead, id)
		}
	})

	for _, id := range dead {
		r.registry.Unregister(id)
	}
}

// Resume replays the events a user missed since lastEventID onto one
// freshly registered connection, preserving order.
func (r *Router) Resume(connID domain.ConnID, lastEventID uint64) {
	if r.ring == nil {
		return
	}

	for _, event := range r.ring.Since(connID.User, lastEventID) {
		if err := r.registry.Enqueue(connID, event); err != nil {
			return
		}
	}
}
