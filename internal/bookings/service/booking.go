package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"roombook/internal/bookings/conflict"
	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/events"
	"roombook/internal/bookings/interval"
	"roombook/internal/bookings/repository"
	"roombook/internal/bookings/validator"
	"roombook/pkg/auth"
	"roombook/pkg/client"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

type BookingService interface {
	Create(ctx context.Context, identity *auth.Identity, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, identity *auth.Identity, id string) (*model.Booking, error)
	List(ctx context.Context, identity *auth.Identity, filter model.BookingFilter) ([]*model.Booking, int64, error)
	ListByOwner(ctx context.Context, identity *auth.Identity, ownerID string, limit int, offset int64) ([]*model.Booking, int64, error)
	Update(ctx context.Context, identity *auth.Identity, id string, update *model.BookingUpdate) (*model.Booking, error)
	Cancel(ctx context.Context, identity *auth.Identity, id string) error

	IsAvailable(ctx context.Context, roomID string, iv interval.Interval) (*Availability, error)
	CheckAvailability(ctx context.Context, req *model.AvailabilityRequest) (*Availability, error)
	SearchAvailable(ctx context.Context, iv interval.Interval, filter model.RoomFilter) ([]model.RoomSummary, error)
	FindAvailableRooms(ctx context.Context, req *model.RoomSearchRequest) ([]model.RoomSummary, error)
}

// RoomDirectory resolves rooms owned by the rooms service.
type RoomDirectory interface {
	Get(ctx context.Context, roomID string) (*model.Room, error)
	List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	locks     repository.RoomLockRepository
	rooms     RoomDirectory
	checker   *conflict.Checker
	validator *validator.BookingValidator
	events    events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

type Option func(*bookingService)

// WithClock replaces time.Now for the past-start checks.
func WithClock(now func() time.Time) Option {
	return func(s *bookingService) {
		s.now = now
	}
}

func NewBookingService(
	repo repository.BookingRepository,
	locks repository.RoomLockRepository,
	rooms RoomDirectory,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	s := &bookingService{
		repo:      repo,
		locks:     locks,
		rooms:     rooms,
		checker:   conflict.NewChecker(repo),
		validator: validator,
		events:    publisher,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *bookingService) Create(ctx context.Context, identity *auth.Identity, req *model.BookingRequest) (*model.Booking, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	req.RoomID = sanitizer.TrimAndNormalize(req.RoomID)
	req.Purpose = sanitizer.SanitizeText(req.Purpose)

	iv, err := s.validator.Validate(req)
	if err != nil {
		return nil, s.validationError("Booking validation failed", err)
	}
	if err := s.rejectPastStart(iv); err != nil {
		return nil, err
	}

	room, err := s.lookupRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsAvailable {
		return nil, apperrors.Validation("Room is not available", map[string]any{"room_id": room.ID})
	}

	booking := &model.Booking{
		RoomID:    room.ID,
		OwnerID:   identity.UserID,
		StartTime: iv.Start,
		EndTime:   iv.End,
		Purpose:   req.Purpose,
		Status:    model.BookingStatusActive,
	}

	err = s.withRoomLock(ctx, booking.RoomID, func() error {
		return s.inTransaction(ctx, func(txCtx context.Context) error {
			if err := s.ensureNoConflicts(txCtx, booking.RoomID, iv, ""); err != nil {
				return err
			}
			return s.repo.Create(txCtx, booking)
		})
	})
	if err != nil {
		return nil, s.writeError(ctx, err, "create", booking.RoomID, iv, "")
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"room_id", booking.RoomID,
		"owner_id", booking.OwnerID,
		"interval", iv.String(),
	)
	s.publish(ctx, identity, events.TypeCreated, booking)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, identity *auth.Identity, id string) (*model.Booking, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.OwnerID != identity.UserID && !identity.CanViewAllBookings() {
		return nil, apperrors.Forbidden("Not authorized to view this booking")
	}
	return booking, nil
}

// List returns every booking for admins and facility managers, and only the
// caller's own bookings for everyone else.
func (s *bookingService) List(ctx context.Context, identity *auth.Identity, filter model.BookingFilter) ([]*model.Booking, int64, error) {
	if identity == nil {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	if !identity.CanViewAllBookings() {
		filter.OwnerID = identity.UserID
	}
	if filter.Status != "" && filter.Status != model.BookingStatusActive && filter.Status != model.BookingStatusCancelled {
		return nil, 0, apperrors.Validation("Invalid status filter", map[string]any{
			"status":  filter.Status,
			"allowed": []string{model.BookingStatusActive, model.BookingStatusCancelled},
		})
	}
	return s.list(ctx, filter)
}

func (s *bookingService) ListByOwner(ctx context.Context, identity *auth.Identity, ownerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if identity == nil {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	if ownerID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}
	if ownerID != identity.UserID && !identity.CanViewAllBookings() {
		return nil, 0, apperrors.Forbidden("Not authorized to view this user's bookings")
	}
	return s.list(ctx, model.BookingFilter{OwnerID: ownerID, Limit: limit, Offset: offset})
}

func (s *bookingService) list(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, filter)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, count, nil
}

// Update changes the interval or purpose of an active booking. The patch is
// merged onto a copy re-read under the room lock, so neither a concurrent
// cancel nor a concurrent interval change is overwritten. Only a moved start
// must lie in the future; a running meeting may still be extended.
func (s *bookingService) Update(ctx context.Context, identity *auth.Identity, id string, update *model.BookingUpdate) (*model.Booking, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if update == nil || update.IsEmpty() {
		return nil, apperrors.InvalidInput("No fields to update")
	}

	existing, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive() {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	if err := authorizeModify(identity, existing); err != nil {
		return nil, err
	}

	if update.Purpose != nil {
		purpose := sanitizer.SanitizeText(*update.Purpose)
		update.Purpose = &purpose
	}

	var (
		updated *model.Booking
		iv      interval.Interval
	)
	err = s.withRoomLock(ctx, existing.RoomID, func() error {
		return s.inTransaction(ctx, func(txCtx context.Context) error {
			fresh, err := s.repo.FindByID(txCtx, id)
			if err != nil {
				return err
			}
			if !fresh.IsActive() {
				return apperrors.NotFoundWithID("Booking", id)
			}
			if err := authorizeModify(identity, fresh); err != nil {
				return err
			}

			// Merge onto the locked copy so fields the patch leaves out keep
			// whatever another writer committed before us.
			current := interval.Interval{Start: fresh.StartTime, End: fresh.EndTime}
			merged, err := s.validator.ValidateUpdate(update, current)
			if err != nil {
				return s.validationError("Invalid update input", err)
			}
			if !merged.Start.Equal(current.Start) {
				if err := s.rejectPastStart(merged); err != nil {
					return err
				}
			}
			iv = merged

			if err := s.ensureNoConflicts(txCtx, fresh.RoomID, iv, fresh.ID); err != nil {
				return err
			}

			fresh.StartTime = iv.Start
			fresh.EndTime = iv.End
			if update.Purpose != nil {
				fresh.Purpose = *update.Purpose
			}
			if err := s.repo.Update(txCtx, fresh); err != nil {
				return err
			}
			updated = fresh
			return nil
		})
	})
	if err != nil {
		return nil, s.writeError(ctx, err, "update", existing.RoomID, iv, id)
	}

	s.cfg.Log.Info("Booking updated successfully", "id", id, "interval", iv.String())
	s.publish(ctx, identity, events.TypeUpdated, updated)
	return updated, nil
}

// Cancel flips an active booking to cancelled. It runs under the room lock so
// it cannot interleave with an update of the same booking.
func (s *bookingService) Cancel(ctx context.Context, identity *auth.Identity, id string) error {
	if identity == nil {
		return apperrors.Unauthorized("Authentication required")
	}

	existing, err := s.findBooking(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeModify(identity, existing); err != nil {
		return err
	}

	var cancelled *model.Booking
	err = s.withRoomLock(ctx, existing.RoomID, func() error {
		return s.inTransaction(ctx, func(txCtx context.Context) error {
			fresh, err := s.repo.FindByID(txCtx, id)
			if err != nil {
				return err
			}
			if !fresh.IsActive() {
				return apperrors.InvalidState("Booking is already cancelled")
			}
			fresh.Status = model.BookingStatusCancelled
			if err := s.repo.Update(txCtx, fresh); err != nil {
				return err
			}
			cancelled = fresh
			return nil
		})
	})
	if err != nil {
		iv := interval.Interval{Start: existing.StartTime, End: existing.EndTime}
		return s.writeError(ctx, err, "cancel", existing.RoomID, iv, id)
	}

	s.cfg.Log.Info("Booking cancelled successfully", "id", id, "room_id", cancelled.RoomID)
	s.publish(ctx, identity, events.TypeCancelled, cancelled)
	return nil
}

// --- Helpers ---

func authorizeModify(identity *auth.Identity, booking *model.Booking) error {
	if booking.OwnerID == identity.UserID || identity.IsAdmin() {
		return nil
	}
	return apperrors.Forbidden("Only the booking owner or an admin can modify this booking")
}

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) lookupRoom(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrRoomNotFound):
			return nil, apperrors.NotFoundWithID("Room", roomID)
		case errors.Is(err, client.ErrRoomsUnauthorized):
			return nil, apperrors.Unauthorized("Rooms service rejected the credentials")
		case errors.Is(err, client.ErrRoomsUnavailable):
			s.cfg.Log.Error("Room lookup failed", "room_id", roomID, "error", err)
			return nil, apperrors.Unavailable("Rooms service")
		default:
			return nil, apperrors.Internal("Failed to look up room", err)
		}
	}
	return room, nil
}

func (s *bookingService) rejectPastStart(iv interval.Interval) error {
	if iv.Start.Before(s.now()) {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"errors": validator.ValidationErrors{{Field: "start_time", Message: "start_time cannot be in the past"}},
		})
	}
	return nil
}

func (s *bookingService) validationError(message string, err error) error {
	s.cfg.Log.Warn(message, "error", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, map[string]any{"errors": verrs})
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

// ensureNoConflicts lists every active booking colliding with iv.
func (s *bookingService) ensureNoConflicts(ctx context.Context, roomID string, iv interval.Interval, excludeID string) error {
	conflicts, err := s.checker.FindConflicts(ctx, roomID, iv, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return conflictError(conflicts)
	}
	return nil
}

func conflictError(conflicts []*model.Booking) *apperrors.AppError {
	return apperrors.Conflict("Booking conflicts with existing bookings").WithDetails(map[string]any{
		"conflicts": conflict.Summarize(conflicts),
	})
}

// inTransaction runs fn in a storage transaction, starting over when the
// store aborts it with a serialization failure. The caller holds the room
// lock, so such aborts come from predicate locks of other rooms and usually
// clear on the next attempt.
func (s *bookingService) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.repo.ExecuteTransaction(ctx, fn)
		if !errors.Is(err, bookingserrors.ErrWriteConflict) || ctx.Err() != nil {
			return err
		}
		s.cfg.Log.Warn("Booking transaction aborted by write conflict", "attempt", attempt, "error", err)
	}
	return err
}

// writeError translates what came out of a locked transaction. A constraint
// rejection is a conflict, listing the colliders as they stand once the race
// is over. A write conflict that outlived its retries is only a conflict if
// colliders actually exist; otherwise the room was merely contended.
func (s *bookingService) writeError(ctx context.Context, err error, op, roomID string, iv interval.Interval, excludeID string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperrors.CodeInternal {
			s.cfg.Log.Error("Failed to "+op+" booking", "room_id", roomID, "error", err)
		}
		return appErr
	}

	switch {
	case errors.Is(err, bookingserrors.ErrSlotTaken):
		s.cfg.Log.Warn("Storage constraint rejected booking write", "op", op, "room_id", roomID, "error", err)
		conflicts, findErr := s.checker.FindConflicts(ctx, roomID, iv, excludeID)
		if findErr != nil {
			conflicts = nil
		}
		return conflictError(conflicts)
	case errors.Is(err, bookingserrors.ErrWriteConflict):
		s.cfg.Log.Warn("Booking write kept conflicting", "op", op, "room_id", roomID, "attempts", maxTxAttempts, "error", err)
		conflicts, findErr := s.checker.FindConflicts(ctx, roomID, iv, excludeID)
		if findErr == nil && len(conflicts) > 0 {
			return conflictError(conflicts)
		}
		return apperrors.Busy("Room is busy with another booking, retry shortly", lockRetryHint)
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", excludeID)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		s.cfg.Log.Error("Failed to "+op+" booking", "room_id", roomID, "error", err)
		return apperrors.Internal("Failed to "+op+" booking", err)
	}
}

// publish runs after commit. A lost event is logged, never surfaced.
func (s *bookingService) publish(ctx context.Context, identity *auth.Identity, eventType string, booking *model.Booking) {
	ctx = events.WithActorID(ctx, identity.UserID)
	if err := s.events.Publish(ctx, eventType, booking); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}
