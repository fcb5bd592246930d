package service

import (
	"context"
	"errors"

	"roombook/internal/bookings/conflict"
	"roombook/internal/bookings/interval"
	"roombook/pkg/client"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"

	"golang.org/x/sync/errgroup"
)

// Availability answers whether one room is free. It is advisory: nothing is
// held once it is returned.
type Availability struct {
	RoomID        string             `json:"room_id"`
	Available     bool               `json:"available"`
	RoomAvailable bool               `json:"room_available"`
	Conflicts     []conflict.Summary `json:"conflicts"`
}

func (s *bookingService) CheckAvailability(ctx context.Context, req *model.AvailabilityRequest) (*Availability, error) {
	iv, err := s.validator.ValidateAvailability(req)
	if err != nil {
		return nil, s.validationError("Invalid availability query", err)
	}
	return s.IsAvailable(ctx, req.RoomID, iv)
}

// IsAvailable is true when no active booking collides with iv and the room
// itself is flagged available.
func (s *bookingService) IsAvailable(ctx context.Context, roomID string, iv interval.Interval) (*Availability, error) {
	room, err := s.lookupRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.checker.FindConflicts(ctx, room.ID, iv, "")
	if err != nil {
		s.cfg.Log.Error("Failed to check room availability", "room_id", roomID, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}

	return &Availability{
		RoomID:        room.ID,
		Available:     len(conflicts) == 0 && room.IsAvailable,
		RoomAvailable: room.IsAvailable,
		Conflicts:     conflict.Summarize(conflicts),
	}, nil
}

func (s *bookingService) FindAvailableRooms(ctx context.Context, req *model.RoomSearchRequest) ([]model.RoomSummary, error) {
	iv, err := s.validator.ValidateInterval(req.StartTime, req.EndTime)
	if err != nil {
		return nil, s.validationError("Invalid availability search", err)
	}
	return s.SearchAvailable(ctx, iv, req.Filter)
}

// SearchAvailable checks every candidate room concurrently and keeps the ones
// with zero conflicts, in the order the directory returned them.
func (s *bookingService) SearchAvailable(ctx context.Context, iv interval.Interval, filter model.RoomFilter) ([]model.RoomSummary, error) {
	if err := s.rejectPastStart(iv); err != nil {
		return nil, err
	}

	filter.AvailableOnly = true
	rooms, err := s.rooms.List(ctx, filter)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrRoomsUnauthorized):
			return nil, apperrors.Unauthorized("Rooms service rejected the credentials")
		case errors.Is(err, client.ErrRoomsUnavailable):
			s.cfg.Log.Error("Room listing failed", "error", err)
			return nil, apperrors.Unavailable("Rooms service")
		default:
			return nil, apperrors.Internal("Failed to list rooms", err)
		}
	}

	free := make([]bool, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.SearchConcurrency, 1))

	for i, room := range rooms {
		if !room.IsAvailable {
			continue
		}
		i, room := i, room
		g.Go(func() error {
			conflicts, err := s.checker.FindConflicts(gctx, room.ID, iv, "")
			if err != nil {
				return err
			}
			free[i] = len(conflicts) == 0
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Availability search failed", "interval", iv.String(), "error", err)
		return nil, apperrors.Internal("Failed to search available rooms", err)
	}

	result := make([]model.RoomSummary, 0, len(rooms))
	for i, room := range rooms {
		if free[i] {
			result = append(result, room.Summary())
		}
	}

	s.cfg.Log.Debug("Availability search completed",
		"interval", iv.String(),
		"candidates", len(rooms),
		"available", len(result),
	)
	return result, nil
}
