package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/collabhub/realtime/domain"
	"github.com/redis/go-redis/v9"
)

const presenceKeyPrefix = "presence:"

// presenceTTL keeps a stale mirror from outliving a crashed node. The
// owning node refreshes it on every heartbeat sweep.
const presenceTTL = 90 * time.Second

type presence struct {
	db *redis.Client
}

func NewPresence(client *redis.Client) *presence {
	return &presence{db: client}
}

func (r *presence) key(userID uint64) string {
	return fmt.Sprintf("%s%d", presenceKeyPrefix, userID)
}

func (r *presence) Update(ctx context.Context, userID uint64, state domain.PresenceState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode presence state: %w", err)
	}

	return r.db.Set(ctx, r.key(userID), body, presenceTTL).Err()
}

func (r *presence) Refresh(ctx context.Context, userID uint64) error {
	return r.db.Expire(ctx, r.key(userID), presenceTTL).Err()
}

func (r *presence) Delete(ctx context.Context, userID uint64) error {
	return r.db.Del(ctx, r.key(userID)).Err()
}

func (r *presence) Get(ctx context.Context, userID uint64) (*domain.PresenceState, error) {
	body, err := r.db.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return &domain.PresenceState{Status: domain.StatusOffline}, nil
		}

		return nil, fmt.Errorf("get presence: %w", err)
	}

	var state domain.PresenceState
	if err = json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("decode presence state: %w", err)
	}

	return &state, nil
}
