package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/interval"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName       = "Bookings"
	FenceCollectionName  = "Room_fences"
	LockCollectionName   = "Booking_locks"
	PostgresBookingTable = "bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// FindOverlapping returns active bookings of roomID intersecting iv.
	FindOverlapping(ctx context.Context, roomID string, iv interval.Interval) ([]*model.Booking, error)
	FindAll(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
	// Update persists the interval, purpose and status of booking.
	Update(ctx context.Context, booking *model.Booking) error
	ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	fences     *mongo.Collection
	txManager  mongotx.TransactionManager
}

// bookingDocument fixes the stored _id type to ObjectID. Reads decode
// straight into model.Booking, which receives the hex string.
type bookingDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	RoomID    string             `bson:"room_id"`
	OwnerID   string             `bson:"owner_id"`
	StartTime time.Time          `bson:"start_time"`
	EndTime   time.Time          `bson:"end_time"`
	Purpose   string             `bson:"purpose"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		fences:     db.Collection(FenceCollectionName),
		// A commit must not outlive the room lock that guards it.
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo, mongotx.WithMaxCommitTime(cfg.LockTTL)),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext cannot be wrapped without losing the session, so it is
// returned unchanged with a no-op cancel.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}

// bumpFence increments the per-room fence document. Two transactions writing
// the same room both touch it, so MongoDB aborts one with a write conflict.
func (r *mongoBookingRepository) bumpFence(ctx context.Context, roomID string) error {
	_, err := r.fences.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{
			"$inc": bson.M{"version": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", bookingserrors.ErrWriteConflict, err)
		}
		return fmt.Errorf("failed to bump room fence: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := r.bumpFence(ctx, booking.RoomID); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := bookingDocument{
		ID:        primitive.NewObjectID(),
		RoomID:    booking.RoomID,
		OwnerID:   booking.OwnerID,
		StartTime: booking.StartTime,
		EndTime:   booking.EndTime,
		Purpose:   booking.Purpose,
		Status:    booking.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", bookingserrors.ErrSlotTaken, err)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = doc.ID.Hex()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return normalize(&booking), nil
}

func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, roomID string, iv interval.Interval) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.find(ctx, overlapFilter(roomID, iv), options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
}

func overlapFilter(roomID string, iv interval.Interval) bson.M {
	return bson.M{
		"room_id":    roomID,
		"status":     model.BookingStatusActive,
		"start_time": bson.M{"$lt": iv.End},
		"end_time":   bson.M{"$gt": iv.Start},
	}
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(filter.Limit)).
		SetSkip(filter.Offset)

	return r.find(ctx, buildListFilter(filter), opts)
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	for _, b := range bookings {
		normalize(b)
	}
	return bookings, nil
}

func buildListFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.RoomID != "" {
		filter["room_id"] = f.RoomID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (r *mongoBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(booking.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.ID)
	}

	if err := r.bumpFence(ctx, booking.RoomID); err != nil {
		return err
	}

	booking.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"start_time": booking.StartTime,
			"end_time":   booking.EndTime,
			"purpose":    booking.Purpose,
			"status":     booking.Status,
			"updated_at": booking.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", bookingserrors.ErrSlotTaken, err)
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := r.txManager.ExecuteTransaction(ctx, fn)
	if err != nil && !apperrors.IsAppError(err) && mongotx.IsWriteConflict(err) {
		return fmt.Errorf("%w: %v", bookingserrors.ErrWriteConflict, err)
	}
	return err
}

// normalize puts stored timestamps back in UTC; drivers hand them back in
// the local zone.
func normalize(b *model.Booking) *model.Booking {
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b
}
