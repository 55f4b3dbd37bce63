package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const membershipKeyPrefix = "workitem:members:"

// membership resolves a work-item reference to its watcher set. The
// CRUD side maintains these sets as collaborators join and leave.
type membership struct {
	db *redis.Client
}

func NewMembership(client *redis.Client) *membership {
	return &membership{db: client}
}

func (r *membership) Resolve(ctx context.Context, workItemID uint64) ([]uint64, error) {
	key := fmt.Sprintf("%s%d", membershipKeyPrefix, workItemID)

	members, err := r.db.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read members of work item %d: %w", workItemID, err)
	}

	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		var id uint64
		if _, err := fmt.Sscanf(m, "%d", &id); err != nil {
			return nil, fmt.Errorf("parse member id %q: %w", m, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}
