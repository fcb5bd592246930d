package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingrepo "roombook/internal/bookings/repository"
	"roombook/internal/migrations/mongo/validators"
	roomrepo "roombook/internal/rooms/repository"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

var (
	RoomsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("uniq_room_name").SetUnique(true),
		},
		{Keys: bson.D{{Key: "is_available", Value: 1}, {Key: "capacity", Value: 1}}},
		{Keys: bson.D{{Key: "equipment", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "room_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		// Storage backstop: two active bookings of one room can never share
		// a start instant, even if the room lock was bypassed.
		{
			Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "start_time", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_room_start").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": model.BookingStatusActive}),
		},
	}

	// Expired locks are reaped by Acquire; the TTL index only cleans up
	// after crashed holders.
	LocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0),
		},
	}
)

type collectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// RunMigration creates every collection up front. Room_fences has to exist
// before the first booking transaction because servers older than 4.4
// refuse to create collections inside a transaction.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running roombook Mongo migrations", "database", db.Name())

	collections := []collectionDef{
		{Name: roomrepo.CollectionName, Indexes: RoomsIndexes, Validator: validators.RoomValidator},
		{Name: bookingrepo.CollectionName, Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		{Name: bookingrepo.LockCollectionName, Indexes: LocksIndexes, Validator: validators.RoomLockValidator},
		{Name: bookingrepo.FenceCollectionName},
	}

	for _, def := range collections {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All Mongo migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
