package service

import (
	"context"
	"errors"
	"sync"
	"time"

	roomserrors "roombook/internal/rooms/errors"
	"roombook/internal/rooms/repository"
	"roombook/internal/rooms/validator"
	"roombook/pkg/auth"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

type RoomService interface {
	Create(ctx context.Context, identity *auth.Identity, req *model.RoomRequest) (*model.Room, error)
	GetByID(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, int64, error)
	Update(ctx context.Context, identity *auth.Identity, id string, update *model.RoomUpdate) (*model.Room, error)
	SetAvailability(ctx context.Context, identity *auth.Identity, id string, available bool) (*model.Room, error)
	Delete(ctx context.Context, identity *auth.Identity, id string) error
}

type roomService struct {
	repo      repository.RoomRepository
	bookings  repository.BookingProbe
	validator *validator.RoomValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewRoomService(
	repo repository.RoomRepository,
	bookings repository.BookingProbe,
	validator *validator.RoomValidator,
	cfg *config.Config,
) RoomService {
	return &roomService{
		repo:      repo,
		bookings:  bookings,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *roomService) Create(ctx context.Context, identity *auth.Identity, req *model.RoomRequest) (*model.Room, error) {
	if err := authorizeManage(identity); err != nil {
		return nil, err
	}

	room := req.ToRoom()
	sanitize(room)

	if err := s.validator.Validate(room); err != nil {
		s.cfg.Log.Warn("Room validation failed",
			"name", room.Name,
			"error", err,
		)
		return nil, validationError(err)
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return nil, s.repoError(err, "create", room.Name)
	}

	s.cfg.Log.Info("Room created successfully",
		"id", room.ID,
		"name", room.Name,
		"capacity", room.Capacity,
		"created_by", identity.UserID,
	)
	return room, nil
}

func (s *roomService) GetByID(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.repoError(err, "get", id)
	}
	return room, nil
}

func (s *roomService) List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, int64, error) {
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)
	filter.Offset = config.NormalizeOffset(filter.Offset)
	filter.Location = sanitizer.TrimAndNormalize(filter.Location)
	filter.Equipment = sanitizer.SanitizeEquipment(filter.Equipment)

	var (
		count             int64
		rooms             []*model.Room
		errCount, errFind error
		wg                sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count rooms", "error", err)
			errCount = apperrors.Internal("Failed to count rooms", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		rooms, err = s.repo.FindAll(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to list rooms",
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve rooms", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if rooms == nil {
		rooms = []*model.Room{}
	}
	return rooms, count, nil
}

func (s *roomService) Update(ctx context.Context, identity *auth.Identity, id string, update *model.RoomUpdate) (*model.Room, error) {
	if err := authorizeManage(identity); err != nil {
		return nil, err
	}

	sanitizeUpdate(update)
	if err := s.validator.ValidateUpdate(update); err != nil {
		return nil, validationError(err)
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := mergeRoomUpdate(existing, update)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Room validation failed",
			"id", id,
			"error", err,
		)
		return nil, validationError(err)
	}

	if err := s.repo.Update(ctx, merged); err != nil {
		return nil, s.repoError(err, "update", id)
	}

	s.cfg.Log.Info("Room updated successfully",
		"id", id,
		"name", merged.Name,
		"updated_by", identity.UserID,
	)
	return merged, nil
}

// SetAvailability flips the bookable flag. Existing bookings are kept; new
// ones are refused while the room is closed.
func (s *roomService) SetAvailability(ctx context.Context, identity *auth.Identity, id string, available bool) (*model.Room, error) {
	return s.Update(ctx, identity, id, &model.RoomUpdate{IsAvailable: &available})
}

func (s *roomService) Delete(ctx context.Context, identity *auth.Identity, id string) error {
	if err := authorizeManage(identity); err != nil {
		return err
	}

	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	upcoming, err := s.bookings.HasUpcomingBookings(ctx, id, s.now().UTC())
	if err != nil {
		s.cfg.Log.Error("Failed to check bookings before room delete",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to check room bookings", err)
	}
	if upcoming {
		return apperrors.InvalidState("Room has upcoming bookings; cancel them or mark the room unavailable")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.repoError(err, "delete", id)
	}

	s.cfg.Log.Info("Room deleted successfully",
		"id", id,
		"deleted_by", identity.UserID,
	)
	return nil
}

func authorizeManage(identity *auth.Identity) error {
	if identity == nil {
		return apperrors.Unauthorized("Authentication required")
	}
	if !identity.CanManageRooms() {
		return apperrors.Forbidden("Only admins and facility managers can manage rooms")
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Room validation failed", map[string]any{"errors": verrs})
	}
	return apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()})
}

func (s *roomService) repoError(err error, op, ref string) error {
	switch {
	case errors.Is(err, roomserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Room", ref)
	case errors.Is(err, roomserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid room ID format")
	case errors.Is(err, roomserrors.ErrDuplicateName):
		return apperrors.Conflict("A room with this name already exists")
	}

	s.cfg.Log.Error("Room repository call failed",
		"operation", op,
		"ref", ref,
		"error", err,
	)
	return apperrors.Internal("Failed to "+op+" room", err)
}

func sanitize(room *model.Room) {
	room.Name = sanitizer.SanitizeNameOrLocation(room.Name)
	room.Location = sanitizer.SanitizeNameOrLocation(room.Location)
	room.Equipment = sanitizer.SanitizeEquipment(room.Equipment)
}

func sanitizeUpdate(update *model.RoomUpdate) {
	if update.Name != nil {
		name := sanitizer.SanitizeNameOrLocation(*update.Name)
		update.Name = &name
	}
	if update.Location != nil {
		location := sanitizer.SanitizeNameOrLocation(*update.Location)
		update.Location = &location
	}
	if update.Equipment != nil {
		equipment := sanitizer.SanitizeEquipment(*update.Equipment)
		update.Equipment = &equipment
	}
}

func mergeRoomUpdate(existing *model.Room, update *model.RoomUpdate) *model.Room {
	merged := *existing

	if update.Name != nil {
		merged.Name = *update.Name
	}
	if update.Capacity != nil {
		merged.Capacity = *update.Capacity
	}
	if update.Location != nil {
		merged.Location = *update.Location
	}
	if update.Equipment != nil {
		merged.Equipment = *update.Equipment
	}
	if update.IsAvailable != nil {
		merged.IsAvailable = *update.IsAvailable
	}

	return &merged
}
