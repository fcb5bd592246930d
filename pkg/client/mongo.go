package client

import (
	"context"
	"time"

	"roombook/pkg/logger"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoOptions struct {
	URI         string
	AppName     string
	ConnTimeout time.Duration
}

// SetMongo connects and pings the primary. Booking transactions need a
// replica set, so reads default to the primary as well.
func (c *Client) SetMongo(log *logger.Logger, opts MongoOptions) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetAppName(opts.AppName).
		SetServerSelectionTimeout(opts.ConnTimeout).
		SetReadPreference(readpref.Primary()).
		SetMonitor(failedCommandMonitor(log))

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB", "app_name", opts.AppName)
	c.Mongo = client
}

// failedCommandMonitor logs server-side command failures. Duplicate keys and
// write conflicts are expected under booking contention, hence Debug.
func failedCommandMonitor(log *logger.Logger) *event.CommandMonitor {
	return &event.CommandMonitor{
		Failed: func(_ context.Context, evt *event.CommandFailedEvent) {
			log.Debug("MongoDB command failed",
				"command", evt.CommandName,
				"duration", evt.Duration,
				"failure", evt.Failure,
			)
		},
	}
}
