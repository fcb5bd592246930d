package conflict

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roombook/internal/bookings/interval"
	"roombook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2030, 5, 14, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type finderFunc func(ctx context.Context, roomID string, iv interval.Interval) ([]*model.Booking, error)

func (f finderFunc) FindOverlapping(ctx context.Context, roomID string, iv interval.Interval) ([]*model.Booking, error) {
	return f(ctx, roomID, iv)
}

// allOf returns every stored row regardless of the query, so the checker's
// own filtering is what the tests observe.
func allOf(rows ...*model.Booking) Finder {
	return finderFunc(func(context.Context, string, interval.Interval) ([]*model.Booking, error) {
		return rows, nil
	})
}

func booking(id, room string, start, end time.Time, status string) *model.Booking {
	return &model.Booking{ID: id, RoomID: room, OwnerID: "u1", StartTime: start, EndTime: end, Status: status}
}

func candidate(t *testing.T, start, end time.Time) interval.Interval {
	t.Helper()
	iv, err := interval.New(start, end)
	require.NoError(t, err)
	return iv
}

func ids(bookings []*model.Booking) []string {
	out := make([]string, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ID)
	}
	return out
}

func TestFindConflicts(t *testing.T) {
	rows := []*model.Booking{
		booking("late", "r1", at(11, 0), at(12, 0), model.BookingStatusActive),
		booking("early", "r1", at(9, 0), at(10, 15), model.BookingStatusActive),
		booking("cancelled", "r1", at(10, 0), at(11, 0), model.BookingStatusCancelled),
		booking("other-room", "r2", at(10, 0), at(11, 0), model.BookingStatusActive),
		booking("adjacent", "r1", at(8, 0), at(9, 0), model.BookingStatusActive),
		booking("inside", "r1", at(10, 30), at(10, 45), model.BookingStatusActive),
	}
	checker := NewChecker(allOf(rows...))

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		exclude string
		want    []string
	}{
		{"all colliders in start order", at(9, 30), at(11, 30), "", []string{"early", "inside", "late"}},
		{"touching endpoints are free", at(12, 0), at(13, 0), "", []string{}},
		{"back to back before adjacent", at(7, 0), at(8, 0), "", []string{}},
		{"cancelled rows ignored", at(10, 20), at(10, 25), "", []string{}},
		{"exclude self", at(9, 0), at(10, 15), "early", []string{}},
		{"exclude only removes the named booking", at(10, 0), at(11, 0), "inside", []string{"early"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.FindConflicts(context.Background(), "r1", candidate(t, tt.start, tt.end), tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFindConflicts_FinderError(t *testing.T) {
	boom := errors.New("connection reset")
	checker := NewChecker(finderFunc(func(context.Context, string, interval.Interval) ([]*model.Booking, error) {
		return nil, boom
	}))

	_, err := checker.FindConflicts(context.Background(), "r1", candidate(t, at(9, 0), at(10, 0)), "")
	assert.ErrorIs(t, err, boom)
}

func TestFindConflicts_ConcurrentReads(t *testing.T) {
	checker := NewChecker(allOf(
		booking("a", "r1", at(9, 0), at(10, 0), model.BookingStatusActive),
		booking("b", "r1", at(10, 0), at(11, 0), model.BookingStatusActive),
	))
	iv := candidate(t, at(9, 30), at(10, 30))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := checker.FindConflicts(context.Background(), "r1", iv, "")
			assert.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(got))
		}()
	}
	wg.Wait()
}

func TestSummarize(t *testing.T) {
	got := Summarize([]*model.Booking{booking("a", "r1", at(9, 0), at(10, 0), model.BookingStatusActive)})

	require.Len(t, got, 1)
	assert.Equal(t, Summary{
		ID:        "a",
		StartTime: "2030-05-14T09:00:00.000Z",
		EndTime:   "2030-05-14T10:00:00.000Z",
		OwnerID:   "u1",
	}, got[0])
}
