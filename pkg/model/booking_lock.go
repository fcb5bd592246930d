package model

import "time"

// RoomLock is the advisory document that serializes writers of one room.
// Owner is a random token so only the holder can release it.
type RoomLock struct {
	ID        string    `bson:"_id" json:"id" db:"lock_key"`
	Owner     string    `bson:"owner" json:"owner" db:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at" db:"created_at"`
}

func RoomLockKey(roomID string) string {
	return "room:" + roomID
}
