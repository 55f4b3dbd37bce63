package use_case

import (
	"context"
	"fmt"
	"time"

	"github.com/collabhub/realtime/domain"
	"github.com/collabhub/realtime/queue"
	"go.uber.org/zap"
)

type eventPublisher interface {
	Publish(ctx context.Context, envelope *queue.EventEnvelope) error
}

// publishEvent is the producer-side half of a publish: stamp the event,
// write the persisted copy for every recipient, then put it on the wire
// for the realtime nodes. The persisted copy is written even when live
// delivery will be suppressed, so badge counts survive DND windows.
type publishEvent struct {
	uidGenerator domain.UIDGenerator
	resolver     domain.AudienceResolver
	store        domain.NotificationStore
	publisher    eventPublisher
	log          *zap.Logger
}

func NewPublishEvent(
	uidGenerator domain.UIDGenerator,
	resolver domain.AudienceResolver,
	store domain.NotificationStore,
	publisher eventPublisher,
	log *zap.Logger,
) *publishEvent {
	return &publishEvent{
		uidGenerator: uidGenerator,
		resolver:     resolver,
		store:        store,
		publisher:    publisher,
		log:          log,
	}
}

func (uc *publishEvent) Execute(ctx context.Context, event *domain.NotificationEvent, audience domain.Audience) error {
	if event.ID == 0 {
		id, err := uc.uidGenerator.NewUID(ctx)
		if err != nil {
			return fmt.Errorf("generate event id: %w", err)
		}

		event.ID = id
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	uc.persist(ctx, event, audience)

	envelope := queue.EventEnvelope{
		Event:      *event,
		UserIDs:    audience.UserIDs,
		WorkItemID: audience.WorkItemID,
	}

	if err := uc.publisher.Publish(ctx, &envelope); err != nil {
		return fmt.Errorf("publish event %d: %w", event.ID, err)
	}

	return nil
}

// persist writes the badge-count copies. A store failure degrades to a
// log line; it never blocks the live publish.
func (uc *publishEvent) persist(ctx context.Context, event *domain.NotificationEvent, audience domain.Audience) {
	users := audience.UserIDs

	if audience.WorkItemID != 0 {
		resolved, err := uc.resolver.Resolve(ctx, audience.WorkItemID)
		if err != nil {
			uc.log.Error("audience resolution failed, skipping persistence",
				zap.Uint64("eventId", event.ID),
				zap.Uint64("workItemId", audience.WorkItemID),
				zap.Error(err),
			)
			return
		}

		users = append(resolved, users...)
	}

	for _, userID := range users {
		if userID == event.OriginUserID {
			continue
		}

		if err := uc.store.Insert(ctx, userID, event); err != nil {
			uc.log.Error("persist notification failed",
				zap.Uint64("eventId", event.ID),
				zap.Uint64("userId", userID),
				zap.Error(err),
			)
		}
	}
}
