package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/collabhub/realtime/domain"
	"github.com/redis/go-redis/v9"
)

const preferenceKeyPrefix = "prefs:"

// preference reads the notification preferences the CRUD side persists.
// A user with no stored row gets the defaults.
type preference struct {
	db *redis.Client
}

func NewPreference(client *redis.Client) *preference {
	return &preference{db: client}
}

func (r *preference) key(userID uint64) string {
	return fmt.Sprintf("%s%d", preferenceKeyPrefix, userID)
}

func (r *preference) Preferences(ctx context.Context, userID uint64) (domain.Preferences, error) {
	body, err := r.db.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.DefaultPreferences(), nil
		}

		return domain.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}

	var prefs domain.Preferences
	if err = json.Unmarshal(body, &prefs); err != nil {
		return domain.Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}

	return prefs, nil
}

func (r *preference) Save(ctx context.Context, userID uint64, prefs domain.Preferences) error {
	body, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	return r.db.Set(ctx, r.key(userID), body, 0).Err()
}
