// Package participants tracks room membership. Join is idempotent and
// best-effort bookkeeping; the media server token is the actual
// authorization artifact.
package participants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multispeaker/backend/internal/models"
)

// Repository handles membership persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordJoin inserts a membership row for (room, identity) unless one
// already exists. Calling twice with the same pair yields exactly one row.
func (r *Repository) RecordJoin(ctx context.Context, roomID uuid.UUID, identity string, joinedAt time.Time) error {
	const q = `INSERT INTO participants (room_id, identity, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, identity) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, roomID, identity, joinedAt)
	return err
}

// List returns the room's members ordered by join time ascending.
func (r *Repository) List(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	const q = `SELECT id, room_id, identity, joined_at
		FROM participants WHERE room_id = $1 ORDER BY joined_at ASC`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Identity, &p.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// HasMember reports whether the identity has a membership row in the room.
func (r *Repository) HasMember(ctx context.Context, roomID uuid.UUID, identity string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM participants WHERE room_id = $1 AND identity = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, roomID, identity).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
