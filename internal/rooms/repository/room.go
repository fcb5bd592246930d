package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	roomserrors "roombook/internal/rooms/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName        = "Rooms"
	BookingCollectionName = "Bookings"
	PostgresRoomTable     = "rooms"
)

type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindAll(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error)
	Count(ctx context.Context, filter model.RoomFilter) (int64, error)
	Update(ctx context.Context, room *model.Room) error
	Delete(ctx context.Context, id string) error
}

// BookingProbe looks into the booking store so a room with upcoming
// bookings is never deleted out from under them.
type BookingProbe interface {
	HasUpcomingBookings(ctx context.Context, roomID string, now time.Time) (bool, error)
}

type mongoRoomRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type roomDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Capacity    int                `bson:"capacity"`
	Location    string             `bson:"location"`
	Equipment   []string           `bson:"equipment"`
	IsAvailable bool               `bson:"is_available"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func NewMongoRoomRepository(cfg *config.Config) RoomRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoRoomRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := roomDocument{
		ID:          primitive.NewObjectID(),
		Name:        room.Name,
		Capacity:    room.Capacity,
		Location:    room.Location,
		Equipment:   room.Equipment,
		IsAvailable: room.IsAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if doc.Equipment == nil {
		doc.Equipment = []string{}
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", roomserrors.ErrDuplicateName, room.Name)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	room.ID = doc.ID.Hex()
	room.CreatedAt = now
	room.UpdatedAt = now
	return nil
}

func (r *mongoRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", roomserrors.ErrInvalidID, id)
	}

	var room model.Room
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", roomserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

func (r *mongoRoomRepository) FindAll(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(filter.Limit)).
		SetSkip(filter.Offset)

	cursor, err := r.collection.Find(ctx, buildRoomFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []*model.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return rooms, nil
}

func (r *mongoRoomRepository) Count(ctx context.Context, filter model.RoomFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildRoomFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return count, nil
}

// buildRoomFilter matches location as a case-insensitive substring and
// requires every listed equipment tag.
func buildRoomFilter(f model.RoomFilter) bson.M {
	filter := bson.M{}
	if f.MinCapacity > 0 {
		filter["capacity"] = bson.M{"$gte": f.MinCapacity}
	}
	if f.Location != "" {
		filter["location"] = bson.M{"$regex": regexp.QuoteMeta(f.Location), "$options": "i"}
	}
	if len(f.Equipment) > 0 {
		filter["equipment"] = bson.M{"$all": f.Equipment}
	}
	if f.AvailableOnly {
		filter["is_available"] = true
	}
	return filter
}

func (r *mongoRoomRepository) Update(ctx context.Context, room *model.Room) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(room.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", roomserrors.ErrInvalidID, room.ID)
	}

	room.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"name":         room.Name,
			"capacity":     room.Capacity,
			"location":     room.Location,
			"equipment":    room.Equipment,
			"is_available": room.IsAvailable,
			"updated_at":   room.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", roomserrors.ErrDuplicateName, room.Name)
		}
		return fmt.Errorf("failed to update room: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", roomserrors.ErrNotFound, room.ID)
	}
	return nil
}

func (r *mongoRoomRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", roomserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", roomserrors.ErrNotFound, id)
	}
	return nil
}

type mongoBookingProbe struct {
	cfg      *config.Config
	bookings *mongo.Collection
}

func NewMongoBookingProbe(cfg *config.Config) BookingProbe {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingProbe{cfg: cfg, bookings: db.Collection(BookingCollectionName)}
}

func (p *mongoBookingProbe) HasUpcomingBookings(ctx context.Context, roomID string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"room_id":  roomID,
		"status":   model.BookingStatusActive,
		"end_time": bson.M{"$gt": now},
	}
	count, err := p.bookings.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to probe bookings: %w", err)
	}
	return count > 0, nil
}
