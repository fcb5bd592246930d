package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/interval"
	"roombook/pkg/config"
	pgtx "roombook/pkg/db/postgres"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const bookingColumns = "id, room_id, owner_id, start_time, end_time, purpose, status, created_at, updated_at"

type postgresBookingRepository struct {
	cfg       *config.Config
	db        *sqlx.DB
	txManager pgtx.TransactionManager
}

func NewPostgresBookingRepository(cfg *config.Config) BookingRepository {
	return newPostgresBookingRepository(cfg, cfg.Client.Postgres)
}

func newPostgresBookingRepository(cfg *config.Config, db *sqlx.DB) *postgresBookingRepository {
	return &postgresBookingRepository{
		cfg:       cfg,
		db:        db,
		txManager: pgtx.NewTransactionManager(db),
	}
}

func (r *postgresBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *postgresBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.ID = uuid.NewString()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	query := `INSERT INTO ` + PostgresBookingTable + ` (` + bookingColumns + `)
		VALUES (:id, :room_id, :owner_id, :start_time, :end_time, :purpose, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, pgtx.Conn(ctx, r.db), query, booking); err != nil {
		booking.ID = ""
		return translatePgError(err, "create booking")
	}
	return nil
}

func (r *postgresBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	query := `SELECT ` + bookingColumns + ` FROM ` + PostgresBookingTable + ` WHERE id = $1`
	if err := pgtx.Conn(ctx, r.db).GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, translatePgError(err, "find booking")
	}
	return normalize(&booking), nil
}

// FindOverlapping reads inside the caller's SERIALIZABLE transaction, so the
// predicate it scans is protected against concurrent inserts.
func (r *postgresBookingRepository) FindOverlapping(ctx context.Context, roomID string, iv interval.Interval) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query, args := overlapQuery(roomID, iv)
	return r.selectBookings(ctx, query, args...)
}

// overlapQuery selects active bookings of roomID intersecting the half-open
// iv: stored start before iv.End and stored end after iv.Start.
func overlapQuery(roomID string, iv interval.Interval) (string, []any) {
	query := `SELECT ` + bookingColumns + ` FROM ` + PostgresBookingTable + `
		WHERE room_id = $1 AND status = $2 AND start_time < $4 AND end_time > $3
		ORDER BY start_time, id`
	return query, []any{roomID, model.BookingStatusActive, iv.Start, iv.End}
}

func (r *postgresBookingRepository) FindAll(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	where, args := buildPgListFilter(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY start_time, id LIMIT $%d OFFSET $%d`,
		bookingColumns, PostgresBookingTable, where, len(args)-1, len(args))

	return r.selectBookings(ctx, query, args...)
}

func (r *postgresBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	where, args := buildPgListFilter(filter)
	var count int64
	query := `SELECT COUNT(*) FROM ` + PostgresBookingTable + where
	if err := pgtx.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		return 0, translatePgError(err, "count bookings")
	}
	return count, nil
}

func (r *postgresBookingRepository) selectBookings(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	var bookings []*model.Booking
	if err := pgtx.Conn(ctx, r.db).SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, translatePgError(err, "find bookings")
	}
	for _, b := range bookings {
		normalize(b)
	}
	return bookings, nil
}

func buildPgListFilter(f model.BookingFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("owner_id", f.OwnerID)
	add("room_id", f.RoomID)
	add("status", f.Status)

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *postgresBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := uuid.Parse(booking.ID); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.ID)
	}

	booking.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	query := `UPDATE ` + PostgresBookingTable + `
		SET start_time = :start_time, end_time = :end_time, purpose = :purpose,
			status = :status, updated_at = :updated_at
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, pgtx.Conn(ctx, r.db), query, booking)
	if err != nil {
		return translatePgError(err, "update booking")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if rows == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *postgresBookingRepository) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := r.txManager.ExecuteTransaction(ctx, fn)
	if err != nil && !apperrors.IsAppError(err) && pgtx.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", bookingserrors.ErrWriteConflict, err)
	}
	return err
}

func translatePgError(err error, op string) error {
	switch {
	case pgtx.IsOverlapViolation(err):
		return fmt.Errorf("%w: %v", bookingserrors.ErrSlotTaken, err)
	case pgtx.IsSerializationFailure(err):
		return fmt.Errorf("%w: %v", bookingserrors.ErrWriteConflict, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
