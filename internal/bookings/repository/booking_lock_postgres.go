package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"

	"github.com/jmoiron/sqlx"
)

const PostgresLockTable = "room_locks"

type postgresRoomLockRepository struct {
	db *sqlx.DB
}

func NewPostgresRoomLockRepository(cfg *config.Config) RoomLockRepository {
	return &postgresRoomLockRepository{db: cfg.Client.Postgres}
}

// Acquire runs outside any booking transaction so the lock row is visible to
// other instances as soon as it is inserted.
func (r *postgresRoomLockRepository) Acquire(ctx context.Context, roomID, owner string, ttl time.Duration) error {
	key := model.RoomLockKey(roomID)
	now := time.Now().UTC()

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM `+PostgresLockTable+` WHERE lock_key = $1 AND expires_at <= $2`, key, now); err != nil {
		return fmt.Errorf("failed to reap expired lock: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO `+PostgresLockTable+` (lock_key, owner, expires_at, created_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (lock_key) DO NOTHING`,
		key, owner, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("failed to acquire room lock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acquire room lock: %w", err)
	}
	if rows == 0 {
		return bookingserrors.ErrLockHeld
	}
	return nil
}

func (r *postgresRoomLockRepository) Release(ctx context.Context, roomID, owner string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM `+PostgresLockTable+` WHERE lock_key = $1 AND owner = $2`,
		model.RoomLockKey(roomID), owner)
	if err != nil {
		return fmt.Errorf("failed to release room lock: %w", err)
	}
	return nil
}
