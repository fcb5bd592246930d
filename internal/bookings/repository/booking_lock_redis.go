package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"

	"github.com/go-redis/redis/v8"
)

const redisLockPrefix = "roombook:lock:"

// releaseScript deletes the key only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisRoomLockRepository struct {
	client *redis.Client
}

func NewRedisRoomLockRepository(cfg *config.Config) RoomLockRepository {
	return &redisRoomLockRepository{client: cfg.Client.Redis}
}

func (r *redisRoomLockRepository) Acquire(ctx context.Context, roomID, owner string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, redisLockPrefix+model.RoomLockKey(roomID), owner, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire room lock: %w", err)
	}
	if !ok {
		return bookingserrors.ErrLockHeld
	}
	return nil
}

func (r *redisRoomLockRepository) Release(ctx context.Context, roomID, owner string) error {
	key := redisLockPrefix + model.RoomLockKey(roomID)
	if err := releaseScript.Run(ctx, r.client, []string{key}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release room lock: %w", err)
	}
	return nil
}
