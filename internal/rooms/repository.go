package rooms

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multispeaker/backend/internal/models"
)

// ErrReservedExists is returned by Create when another insert already won
// the (owner, reserved_name) slot. Callers re-read and use the winner.
var ErrReservedExists = errors.New("reserved room already exists for owner")

const pgUniqueViolation = "23505"

// Repository handles room persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a rooms repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a room. For reserved rooms a lost insert race surfaces as
// ErrReservedExists rather than a raw constraint error.
func (r *Repository) Create(ctx context.Context, room *models.Room) error {
	const q = `INSERT INTO rooms (name, owner_id, reserved_name)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, room.Name, room.OwnerID, room.ReservedName).
		Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrReservedExists
		}
		return err
	}
	return nil
}

// GetByID returns a room, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	const q = `SELECT id, name, owner_id, COALESCE(reserved_name, ''), created_at, updated_at
		FROM rooms WHERE id = $1`
	var room models.Room
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&room.ID, &room.Name, &room.OwnerID, &room.ReservedName, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

// GetReserved returns the owner's reserved room, or nil when absent.
func (r *Repository) GetReserved(ctx context.Context, ownerID uuid.UUID, reservedName string) (*models.Room, error) {
	const q = `SELECT id, name, owner_id, COALESCE(reserved_name, ''), created_at, updated_at
		FROM rooms WHERE owner_id = $1 AND reserved_name = $2`
	var room models.Room
	err := r.pool.QueryRow(ctx, q, ownerID, reservedName).
		Scan(&room.ID, &room.Name, &room.OwnerID, &room.ReservedName, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

// List returns all rooms, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Room, error) {
	const q = `SELECT id, name, owner_id, COALESCE(reserved_name, ''), created_at, updated_at
		FROM rooms ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.OwnerID, &room.ReservedName, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, room)
	}
	return list, rows.Err()
}

// Rename updates a room's display name. Name is the only mutable attribute.
func (r *Repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	const q = `UPDATE rooms SET name = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, name, id)
	return err
}

// Delete removes a room. Memberships and recordings cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM rooms WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
