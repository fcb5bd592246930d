package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	roomserrors "roombook/internal/rooms/errors"
	"roombook/pkg/config"
	pgtx "roombook/pkg/db/postgres"
	"roombook/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const roomColumns = "id, name, capacity, location, equipment, is_available, created_at, updated_at"

// roomRow maps the equipment column onto a text[].
type roomRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Capacity    int            `db:"capacity"`
	Location    string         `db:"location"`
	Equipment   pq.StringArray `db:"equipment"`
	IsAvailable bool           `db:"is_available"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toRow(room *model.Room) roomRow {
	equipment := pq.StringArray(room.Equipment)
	if equipment == nil {
		equipment = pq.StringArray{}
	}
	return roomRow{
		ID:          room.ID,
		Name:        room.Name,
		Capacity:    room.Capacity,
		Location:    room.Location,
		Equipment:   equipment,
		IsAvailable: room.IsAvailable,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
}

func (row roomRow) toModel() *model.Room {
	return &model.Room{
		ID:          row.ID,
		Name:        row.Name,
		Capacity:    row.Capacity,
		Location:    row.Location,
		Equipment:   []string(row.Equipment),
		IsAvailable: row.IsAvailable,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type postgresRoomRepository struct {
	cfg *config.Config
	db  *sqlx.DB
}

func NewPostgresRoomRepository(cfg *config.Config) RoomRepository {
	return &postgresRoomRepository{cfg: cfg, db: cfg.Client.Postgres}
}

func (r *postgresRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	row := toRow(room)
	row.ID = uuid.NewString()
	row.CreatedAt = now
	row.UpdatedAt = now

	query := `INSERT INTO ` + PostgresRoomTable + ` (` + roomColumns + `)
		VALUES (:id, :name, :capacity, :location, :equipment, :is_available, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, row); err != nil {
		if pgtx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", roomserrors.ErrDuplicateName, room.Name)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	room.ID = row.ID
	room.CreatedAt = now
	room.UpdatedAt = now
	return nil
}

func (r *postgresRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", roomserrors.ErrInvalidID, id)
	}

	var row roomRow
	query := `SELECT ` + roomColumns + ` FROM ` + PostgresRoomTable + ` WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", roomserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return row.toModel(), nil
}

func (r *postgresRoomRepository) FindAll(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	where, args := buildPgRoomFilter(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY name LIMIT $%d OFFSET $%d`,
		roomColumns, PostgresRoomTable, where, len(args)-1, len(args))

	var rows []roomRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}

	rooms := make([]*model.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.toModel())
	}
	return rooms, nil
}

func (r *postgresRoomRepository) Count(ctx context.Context, filter model.RoomFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	where, args := buildPgRoomFilter(filter)
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+PostgresRoomTable+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return count, nil
}

func buildPgRoomFilter(f model.RoomFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func() string { return "$" + strconv.Itoa(len(args)) }

	if f.MinCapacity > 0 {
		args = append(args, f.MinCapacity)
		clauses = append(clauses, "capacity >= "+next())
	}
	if f.Location != "" {
		args = append(args, "%"+escapeLike(f.Location)+"%")
		clauses = append(clauses, "location ILIKE "+next())
	}
	if len(f.Equipment) > 0 {
		args = append(args, pq.StringArray(f.Equipment))
		clauses = append(clauses, "equipment @> "+next())
	}
	if f.AvailableOnly {
		clauses = append(clauses, "is_available")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *postgresRoomRepository) Update(ctx context.Context, room *model.Room) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := uuid.Parse(room.ID); err != nil {
		return fmt.Errorf("%w: %s", roomserrors.ErrInvalidID, room.ID)
	}

	room.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	query := `UPDATE ` + PostgresRoomTable + `
		SET name = :name, capacity = :capacity, location = :location, equipment = :equipment,
			is_available = :is_available, updated_at = :updated_at
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, r.db, query, toRow(room))
	if err != nil {
		if pgtx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", roomserrors.ErrDuplicateName, room.Name)
		}
		return fmt.Errorf("failed to update room: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", roomserrors.ErrNotFound, room.ID)
	}
	return nil
}

func (r *postgresRoomRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", roomserrors.ErrInvalidID, id)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM `+PostgresRoomTable+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", roomserrors.ErrNotFound, id)
	}
	return nil
}

type postgresBookingProbe struct {
	cfg *config.Config
	db  *sqlx.DB
}

func NewPostgresBookingProbe(cfg *config.Config) BookingProbe {
	return &postgresBookingProbe{cfg: cfg, db: cfg.Client.Postgres}
}

func (p *postgresBookingProbe) HasUpcomingBookings(ctx context.Context, roomID string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ReadTimeout)
	defer cancel()

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE room_id = $1 AND status = $2 AND end_time > $3)`
	if err := p.db.GetContext(ctx, &exists, query, roomID, model.BookingStatusActive, now); err != nil {
		return false, fmt.Errorf("failed to probe bookings: %w", err)
	}
	return exists, nil
}
