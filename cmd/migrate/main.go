package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"time"

	mongoMigration "roombook/internal/migrations/mongo"
	pgMigration "roombook/internal/migrations/postgres"
	"roombook/pkg/config"

	"github.com/joho/godotenv"
)

const JobName = "migrate"

// The job only needs storage settings, so it skips the full service
// validation that config.Load performs.
func main() {
	driver := flag.String("driver", "", "storage to migrate: mongo or postgres (defaults to STORAGE_DRIVER)")
	timeout := flag.Duration("timeout", 120*time.Second, "overall migration deadline")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
	cfg := config.FromEnv(JobName)
	if *driver != "" {
		cfg.StorageDriver = *driver
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "driver", cfg.StorageDriver)

	var err error
	switch cfg.StorageDriver {
	case config.DriverMongo:
		cfg.SetMongo()
		err = mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.Log)
	case config.DriverPostgres:
		cfg.SetPostgres()
		err = pgMigration.RunMigration(ctx, cfg.Client.Postgres.DB, cfg.Log)
	default:
		cfg.Log.Error("Unknown storage driver", "driver", cfg.StorageDriver)
		return
	}

	if err != nil {
		cfg.Log.Error("Migration failed", "error", err)
		return
	}
	cfg.Log.Info("Migration completed successfully")
}
