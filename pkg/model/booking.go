package model

import "time"

const (
	BookingStatusActive    = "active"
	BookingStatusCancelled = "cancelled"
)

type Booking struct {
	ID        string    `json:"id" bson:"_id,omitempty" db:"id"`
	RoomID    string    `json:"room_id" bson:"room_id" db:"room_id"`
	OwnerID   string    `json:"owner_id" bson:"owner_id" db:"owner_id"`
	StartTime time.Time `json:"start_time" bson:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" bson:"end_time" db:"end_time"`
	Purpose   string    `json:"purpose,omitempty" bson:"purpose" db:"purpose"`
	Status    string    `json:"status" bson:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusActive
}

// BookingRequest is the body of a create call. Times stay strings so the
// interval parser can reject timestamps without an offset.
type BookingRequest struct {
	RoomID    string `json:"room_id" validate:"required,max=64"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Purpose   string `json:"purpose" validate:"omitempty,max=500"`
}

// BookingUpdate carries the fields a caller may change. Nil means unchanged.
type BookingUpdate struct {
	StartTime *string `json:"start_time,omitempty" validate:"omitempty"`
	EndTime   *string `json:"end_time,omitempty" validate:"omitempty"`
	Purpose   *string `json:"purpose,omitempty" validate:"omitempty,max=500"`
}

func (u *BookingUpdate) IsEmpty() bool {
	return u.StartTime == nil && u.EndTime == nil && u.Purpose == nil
}

type BookingFilter struct {
	OwnerID string
	RoomID  string
	Status  string
	Limit   int
	Offset  int64
}

// AvailabilityRequest asks whether one room is free over an interval.
type AvailabilityRequest struct {
	RoomID    string `json:"room_id" validate:"required,max=64"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// RoomSearchRequest asks for every room matching Filter that is free over
// the interval.
type RoomSearchRequest struct {
	StartTime string
	EndTime   string
	Filter    RoomFilter
}
