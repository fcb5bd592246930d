package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/interval"
	"roombook/pkg/model"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestTranslatePgError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"exclusion constraint", &pq.Error{Code: "23P01", Constraint: "excl_active_room_overlap"}, bookingserrors.ErrSlotTaken},
		{"unique index", &pq.Error{Code: "23505"}, bookingserrors.ErrSlotTaken},
		{"serialization failure", &pq.Error{Code: "40001"}, bookingserrors.ErrWriteConflict},
		{"deadlock", &pq.Error{Code: "40P01"}, bookingserrors.ErrWriteConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translatePgError(tt.err, "insert booking")
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestTranslatePgError_OtherFailures(t *testing.T) {
	for _, err := range []error{&pq.Error{Code: "23503"}, errors.New("connection reset")} {
		got := translatePgError(err, "insert booking")

		assert.ErrorIs(t, got, err)
		assert.NotErrorIs(t, got, bookingserrors.ErrSlotTaken)
		assert.NotErrorIs(t, got, bookingserrors.ErrWriteConflict)
		assert.Contains(t, got.Error(), "failed to insert booking")
	}
}

func TestBuildPgListFilter(t *testing.T) {
	where, args := buildPgListFilter(model.BookingFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildPgListFilter(model.BookingFilter{RoomID: "r1", Status: model.BookingStatusActive})
	assert.Equal(t, " WHERE room_id = $1 AND status = $2", where)
	assert.Equal(t, []any{"r1", model.BookingStatusActive}, args)

	where, args = buildPgListFilter(model.BookingFilter{OwnerID: "alice", RoomID: "r1", Status: model.BookingStatusCancelled})
	assert.Equal(t, " WHERE owner_id = $1 AND room_id = $2 AND status = $3", where)
	assert.Equal(t, []any{"alice", "r1", model.BookingStatusCancelled}, args)
}

func TestOverlapQuery(t *testing.T) {
	iv, err := interval.New(
		time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 11, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	query, args := overlapQuery("r1", iv)

	require.Len(t, args, 4)
	assert.Equal(t, "r1", args[0])
	assert.Equal(t, model.BookingStatusActive, args[1])
	// $3 is the candidate start and $4 its end.
	assert.Equal(t, iv.Start, args[2])
	assert.Equal(t, iv.End, args[3])
	assert.Contains(t, query, "start_time < $4")
	assert.Contains(t, query, "end_time > $3")
	assert.False(t, strings.Contains(query, "<=") || strings.Contains(query, ">="), "touching intervals must not overlap")
}

func TestBuildListFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, buildListFilter(model.BookingFilter{}))
	assert.Equal(t,
		bson.M{"owner_id": "alice", "room_id": "r1", "status": model.BookingStatusActive},
		buildListFilter(model.BookingFilter{OwnerID: "alice", RoomID: "r1", Status: model.BookingStatusActive}),
	)
}

func TestOverlapFilter(t *testing.T) {
	iv, err := interval.New(
		time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 11, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	assert.Equal(t, bson.M{
		"room_id":    "r1",
		"status":     model.BookingStatusActive,
		"start_time": bson.M{"$lt": iv.End},
		"end_time":   bson.M{"$gt": iv.Start},
	}, overlapFilter("r1", iv))
}
