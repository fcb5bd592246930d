package client

import (
	"context"
	"database/sql"
	"os"
	"time"

	"roombook/pkg/logger"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type PostgresOptions struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Tracing wraps the driver with X-Ray so every query becomes a subsegment.
	Tracing bool
}

func (c *Client) SetPostgres(log *logger.Logger, opts PostgresOptions) {
	var (
		db  *sql.DB
		err error
	)
	if opts.Tracing {
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
		db, err = xray.SQLContext("postgres", opts.DSN)
	} else {
		db, err = sql.Open("postgres", opts.DSN)
	}
	if err != nil {
		log.Fatal("Failed to open Postgres connection", "error", err)
	}

	conn := sqlx.NewDb(db, "postgres")
	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)
	conn.SetConnMaxLifetime(opts.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		log.Fatal("Failed to ping Postgres", "error", err)
	}

	log.Info("Successfully connected to Postgres", "tracing", opts.Tracing)
	c.Postgres = conn
}
