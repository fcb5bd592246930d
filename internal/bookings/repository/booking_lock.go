package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RoomLockRepository serializes writers of the same room across instances.
// Acquire returns ErrLockHeld while another owner holds an unexpired lock.
type RoomLockRepository interface {
	Acquire(ctx context.Context, roomID, owner string, ttl time.Duration) error
	Release(ctx context.Context, roomID, owner string) error
}

type mongoRoomLockRepository struct {
	collection *mongo.Collection
}

func NewMongoRoomLockRepository(cfg *config.Config) RoomLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Acquire reaps an expired lock on the room before inserting; a duplicate key
// on insert means someone else holds it. The TTL index is only a janitor.
func (r *mongoRoomLockRepository) Acquire(ctx context.Context, roomID, owner string, ttl time.Duration) error {
	key := model.RoomLockKey(roomID)
	now := time.Now().UTC()

	if _, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":        key,
		"expires_at": bson.M{"$lte": now},
	}); err != nil {
		return fmt.Errorf("failed to reap expired lock: %w", err)
	}

	lock := model.RoomLock{
		ID:        key,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire room lock: %w", err)
	}

	return nil
}

func (r *mongoRoomLockRepository) Release(ctx context.Context, roomID, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":   model.RoomLockKey(roomID),
		"owner": owner,
	})
	if err != nil {
		return fmt.Errorf("failed to release room lock: %w", err)
	}
	return nil
}
