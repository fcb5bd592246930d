// Package conflict finds the active bookings of a room that collide with a
// candidate interval.
package conflict

import (
	"context"
	"fmt"
	"sort"

	"roombook/internal/bookings/interval"
	"roombook/pkg/model"
)

// Finder returns the active bookings of roomID whose stored interval
// intersects iv. Implementations may over-approximate; the checker filters.
type Finder interface {
	FindOverlapping(ctx context.Context, roomID string, iv interval.Interval) ([]*model.Booking, error)
}

type Checker struct {
	finder Finder
}

func NewChecker(finder Finder) *Checker {
	return &Checker{finder: finder}
}

// FindConflicts returns every active booking of roomID overlapping candidate,
// ordered by start time. excludeID is skipped so an update never collides
// with itself. Pass "" to exclude nothing.
func (c *Checker) FindConflicts(ctx context.Context, roomID string, candidate interval.Interval, excludeID string) ([]*model.Booking, error) {
	rows, err := c.finder.FindOverlapping(ctx, roomID, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings for room %s: %w", roomID, err)
	}

	conflicts := make([]*model.Booking, 0, len(rows))
	for _, b := range rows {
		if b == nil || !b.IsActive() || b.RoomID != roomID {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if !interval.Overlaps(candidate, interval.Interval{Start: b.StartTime, End: b.EndTime}) {
			continue
		}
		conflicts = append(conflicts, b)
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].StartTime.Equal(conflicts[j].StartTime) {
			return conflicts[i].ID < conflicts[j].ID
		}
		return conflicts[i].StartTime.Before(conflicts[j].StartTime)
	})

	return conflicts, nil
}

// Summary is the client-facing view of a colliding booking.
type Summary struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	OwnerID   string `json:"owner_id"`
}

func Summarize(bookings []*model.Booking) []Summary {
	out := make([]Summary, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, Summary{
			ID:        b.ID,
			StartTime: b.StartTime.UTC().Format(interval.Layout),
			EndTime:   b.EndTime.UTC().Format(interval.Layout),
			OwnerID:   b.OwnerID,
		})
	}
	return out
}
