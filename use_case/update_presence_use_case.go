package use_case

import (
	"context"
	"fmt"

	"github.com/collabhub/realtime/domain"
)

type presencePublisher interface {
	Publish(ctx context.Context, update *domain.PresenceUpdate) error
}

// updatePresence mirrors a state transition to shared storage and fans
// it out to peer nodes. The tracker's change listener drives it.
type updatePresence struct {
	presenceWriter    domain.PresenceWriter
	presencePublisher presencePublisher
}

func NewUpdatePresence(
	presenceWriter domain.PresenceWriter,
	presencePublisher presencePublisher,
) *updatePresence {
	return &updatePresence{
		presenceWriter:    presenceWriter,
		presencePublisher: presencePublisher,
	}
}

func (uc *updatePresence) Execute(ctx context.Context, userID uint64, state domain.PresenceState) error {
	var err error

	if state.Status == domain.StatusOffline {
		err = uc.presenceWriter.Delete(ctx, userID)
	} else {
		err = uc.presenceWriter.Update(ctx, userID, state)
	}

	if err != nil {
		return fmt.Errorf("mirror presence state: %w", err)
	}

	update := domain.PresenceUpdate{
		Type:   domain.FramePresence,
		UserID: userID,
		Status: state.Status,
		State:  state,
	}

	if err = uc.presencePublisher.Publish(ctx, &update); err != nil {
		return fmt.Errorf("publish presence update: %w", err)
	}

	return nil
}
