package model

import "time"

type Room struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Name        string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity    int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=1000"`
	Location    string    `json:"location" bson:"location" validate:"required,min=2,max=200"`
	Equipment   []string  `json:"equipment" bson:"equipment" validate:"omitempty,max=50,dive,required,max=100"`
	IsAvailable bool      `json:"is_available" bson:"is_available"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

type RoomUpdate struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity    *int      `json:"capacity,omitempty" validate:"omitempty,min=1,max=1000"`
	Location    *string   `json:"location,omitempty" validate:"omitempty,min=2,max=200"`
	Equipment   *[]string `json:"equipment,omitempty" validate:"omitempty,max=50,dive,required,max=100"`
	IsAvailable *bool     `json:"is_available,omitempty"`
}

// RoomFilter narrows the room directory. Zero values mean no constraint.
type RoomFilter struct {
	MinCapacity   int
	Location      string
	Equipment     []string
	AvailableOnly bool
	Limit         int
	Offset        int64
}

// RoomSummary is what availability search hands back for each free room.
type RoomSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Location  string   `json:"location"`
	Equipment []string `json:"equipment"`
}

func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:        r.ID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		Location:  r.Location,
		Equipment: r.Equipment,
	}
}

// RoomRequest is the body of a create call. A missing is_available means
// the room opens for booking immediately.
type RoomRequest struct {
	Name        string   `json:"name"`
	Capacity    int      `json:"capacity"`
	Location    string   `json:"location"`
	Equipment   []string `json:"equipment"`
	IsAvailable *bool    `json:"is_available"`
}

func (r *RoomRequest) ToRoom() *Room {
	room := &Room{
		Name:        r.Name,
		Capacity:    r.Capacity,
		Location:    r.Location,
		Equipment:   r.Equipment,
		IsAvailable: true,
	}
	if r.IsAvailable != nil {
		room.IsAvailable = *r.IsAvailable
	}
	return room
}
