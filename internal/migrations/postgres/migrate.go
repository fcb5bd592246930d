package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"roombook/pkg/logger"

	"github.com/pressly/goose/v3"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var migrations embed.FS

// gooseLogger routes goose output through the service logger.
type gooseLogger struct {
	log *logger.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// RunMigration applies every pending embedded migration.
func RunMigration(ctx context.Context, db *sql.DB, log *logger.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Info("Postgres migrations applied", "version", version)
	return nil
}
