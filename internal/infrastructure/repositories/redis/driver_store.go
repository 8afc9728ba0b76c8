package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"seryvo/internal/core/domain"
	"seryvo/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisDriverStore keeps driver profiles as JSON blobs and maintains a set of
// currently-available driver ids so eligibility queries are a single SMEMBERS.
type RedisDriverStore struct {
	client *redis.Client
	prefix string
}

const availableDriversKey = "seryvo:drivers:available"

func NewRedisDriverStore(client *redis.Client) ports.DriverStore {
	return &RedisDriverStore{
		client: client,
		prefix: "seryvo:driver:",
	}
}

func (r *RedisDriverStore) driverKey(id domain.UserID) string {
	return r.prefix + string(id)
}

func (r *RedisDriverStore) SaveProfile(ctx context.Context, profile *domain.DriverProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal driver profile: %w", err)
	}
	if err := r.client.Set(ctx, r.driverKey(profile.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set driver profile in Redis: %w", err)
	}
	return r.syncAvailability(ctx, profile)
}

func (r *RedisDriverStore) GetProfile(ctx context.Context, id domain.UserID) (*domain.DriverProfile, error) {
	data, err := r.client.Get(ctx, r.driverKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver profile from Redis: %w", err)
	}

	var profile domain.DriverProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal driver profile: %w", err)
	}
	return &profile, nil
}

func (r *RedisDriverStore) SetAvailability(ctx context.Context, id domain.UserID, available bool) error {
	profile, err := r.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	profile.Available = available

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal driver profile: %w", err)
	}
	if err := r.client.Set(ctx, r.driverKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set driver profile in Redis: %w", err)
	}
	return r.syncAvailability(ctx, profile)
}

func (r *RedisDriverStore) ListAvailableDrivers(ctx context.Context) ([]domain.UserID, error) {
	members, err := r.client.SMembers(ctx, availableDriversKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get available drivers from Redis: %w", err)
	}

	ids := make([]domain.UserID, 0, len(members))
	for _, m := range members {
		ids = append(ids, domain.UserID(m))
	}
	return ids, nil
}

// syncAvailability keeps the available-drivers set consistent with the
// profile: only approved and available drivers are members.
func (r *RedisDriverStore) syncAvailability(ctx context.Context, profile *domain.DriverProfile) error {
	if profile.Approved && profile.Available {
		if err := r.client.SAdd(ctx, availableDriversKey, string(profile.UserID)).Err(); err != nil {
			return fmt.Errorf("failed to add driver to available set: %w", err)
		}
		return nil
	}
	if err := r.client.SRem(ctx, availableDriversKey, string(profile.UserID)).Err(); err != nil {
		return fmt.Errorf("failed to remove driver from available set: %w", err)
	}
	return nil
}
