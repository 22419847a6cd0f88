package recordings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multispeaker/backend/internal/models"
)

// ErrActiveExists is returned by CreateStarting when the partial unique
// index on live recordings rejects a second row for the same participant.
var ErrActiveExists = errors.New("active recording already exists for participant")

const pgUniqueViolation = "23505"

// Repository handles recording persistence. Status transitions are
// conditional UPDATEs guarded on the current status; the row count tells the
// caller whether the transition applied.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordingColumns = `id, room_id, participant_identity, COALESCE(egress_id, ''), storage_path,
	status, file_size, duration, created_by, created_at, updated_at`

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.RoomID, &rec.ParticipantIdentity, &rec.EgressID, &rec.StoragePath,
		&rec.Status, &rec.FileSize, &rec.Duration, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// CreateStarting inserts a new recording in status starting. A lost race
// against the live-recording unique index surfaces as ErrActiveExists.
func (r *Repository) CreateStarting(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (room_id, participant_identity, storage_path, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, rec.RoomID, rec.ParticipantIdentity, rec.StoragePath,
		models.RecordingStatusStarting, rec.CreatedBy).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrActiveExists
		}
		return err
	}
	rec.Status = models.RecordingStatusStarting
	return nil
}

// SetRecording transitions starting → recording and attaches the egress id.
func (r *Repository) SetRecording(ctx context.Context, id uuid.UUID, egressID string) (bool, error) {
	const q = `UPDATE recordings SET status = $1, egress_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusRecording, egressID, id, models.RecordingStatusStarting)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Complete transitions a non-terminal row to completed, filling size and
// duration. A row already in a terminal state is untouched (returns false),
// which makes duplicate completion notifications a no-op.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, fileSize int64, duration int) (bool, error) {
	const q = `UPDATE recordings SET status = $1, file_size = $2, duration = $3, updated_at = NOW()
		WHERE id = $4 AND status IN ($5, $6)`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusCompleted, fileSize, duration, id,
		models.RecordingStatusStarting, models.RecordingStatusRecording)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed transitions a non-terminal row to failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE recordings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusFailed, id,
		models.RecordingStatusStarting, models.RecordingStatusRecording)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BackfillMetadata fills size/duration on a completed row where the egress
// report arrived without them. Never changes status.
func (r *Repository) BackfillMetadata(ctx context.Context, id uuid.UUID, fileSize int64, duration int) error {
	const q = `UPDATE recordings SET
		file_size = CASE WHEN file_size = 0 THEN $1 ELSE file_size END,
		duration  = CASE WHEN duration = 0 THEN $2 ELSE duration END,
		updated_at = NOW()
		WHERE id = $3 AND status = $4`
	_, err := r.pool.Exec(ctx, q, fileSize, duration, id, models.RecordingStatusCompleted)
	return err
}

// GetByID returns a recording, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	return scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE id = $1`, id))
}

// GetByEgressID returns the recording attached to an egress, or nil.
func (r *Repository) GetByEgressID(ctx context.Context, egressID string) (*models.Recording, error) {
	return scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE egress_id = $1`, egressID))
}

// FindActive returns the participant's live recording in the room, or nil.
func (r *Repository) FindActive(ctx context.Context, roomID uuid.UUID, identity string) (*models.Recording, error) {
	return scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings
		WHERE room_id = $1 AND participant_identity = $2 AND status IN ($3, $4)`,
		roomID, identity, models.RecordingStatusStarting, models.RecordingStatusRecording))
}

// ListByRoom returns the room's recordings, newest first.
func (r *Repository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Recording, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE room_id = $1 ORDER BY created_at DESC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.ParticipantIdentity, &rec.EgressID, &rec.StoragePath,
			&rec.Status, &rec.FileSize, &rec.Duration, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// GetByPath returns the most recent recording stored at a path, or nil.
func (r *Repository) GetByPath(ctx context.Context, path string) (*models.Recording, error) {
	return scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings
		WHERE storage_path = $1 ORDER BY created_at DESC LIMIT 1`, path))
}
