package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// RoomRepository provides persistence for the room catalog.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a new room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = "id, number, type, capacity, building, floor, active, created_at, updated_at"

// List returns rooms with optional filtering and pagination.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	base := "FROM rooms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Building != "" {
		conditions = append(conditions, fmt.Sprintf("building = $%d", len(args)+1))
		args = append(args, filter.Building)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY building, number LIMIT %d OFFSET %d", roomColumns, base, size, offset)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}

	return rooms, total, nil
}

// FindByID loads a room by id.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE id = $1`, roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// Create stores a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	room.Active = true

	const query = `INSERT INTO rooms (id, number, type, capacity, building, floor, active, created_at, updated_at) VALUES (:id, :number, :type, :capacity, :building, :floor, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies a room record.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET number = :number, type = :type, capacity = :capacity, building = :building, floor = :floor, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// Deactivate retires a room.
func (r *RoomRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE rooms SET active = false, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate room: %w", err)
	}
	return nil
}
