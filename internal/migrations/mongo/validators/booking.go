package validators

import "go.mongodb.org/mongo-driver/bson"

// BookingValidator enforces the stored booking shape and, through $expr,
// that every interval ends after it starts. Overlap between active
// bookings cannot be expressed here; the room fence covers that.
var BookingValidator = bson.M{
	"$and": bson.A{
		bson.M{"$jsonSchema": bookingSchema},
		bson.M{"$expr": bson.M{"$gt": bson.A{"$end_time", "$start_time"}}},
	},
}

var bookingSchema = bson.M{
	"bsonType": "object",
	"required": []string{"room_id", "owner_id", "start_time", "end_time", "status", "created_at"},
	"properties": bson.M{
		"_id":        bson.M{"bsonType": "objectId"},
		"room_id":    bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
		"owner_id":   bson.M{"bsonType": "string", "minLength": 1},
		"start_time": bson.M{"bsonType": "date"},
		"end_time":   bson.M{"bsonType": "date"},
		"purpose":    bson.M{"bsonType": "string", "maxLength": 500},
		"status":     bson.M{"enum": bson.A{"active", "cancelled"}},
		"created_at": bson.M{"bsonType": "date"},
		"updated_at": bson.M{"bsonType": "date"},
	},
}
