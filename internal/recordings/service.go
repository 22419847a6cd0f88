// Package recordings owns the per-participant recording lifecycle:
// starting → recording → completed | failed. All legal transitions run
// through one function, whether triggered by an explicit stop or an
// out-of-band egress notification, and every transition is a conditional
// write so concurrent callers and duplicate notifications cannot corrupt
// state.
package recordings

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/multispeaker/backend/internal/livekit"
	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/apperr"
	"github.com/multispeaker/backend/pkg/queue"
	"github.com/multispeaker/backend/pkg/storage"
)

// Store is the persistence surface the lifecycle manager needs.
type Store interface {
	CreateStarting(ctx context.Context, rec *models.Recording) error
	SetRecording(ctx context.Context, id uuid.UUID, egressID string) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, fileSize int64, duration int) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	BackfillMetadata(ctx context.Context, id uuid.UUID, fileSize int64, duration int) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	GetByEgressID(ctx context.Context, egressID string) (*models.Recording, error)
	FindActive(ctx context.Context, roomID uuid.UUID, identity string) (*models.Recording, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Recording, error)
}

// Egress drives per-participant recording on the media server.
type Egress interface {
	StartParticipantEgress(ctx context.Context, roomID, identity, path string, target livekit.S3Target) (string, error)
	StopEgress(ctx context.Context, egressID string) (*livekit.EgressUpdate, error)
}

// Finalizer enqueues post-completion reconciliation work. Optional.
type Finalizer interface {
	EnqueueFinalize(ctx context.Context, payload queue.FinalizePayload) error
}

// Service is the recording lifecycle manager.
type Service struct {
	store     Store
	egress    Egress
	target    livekit.S3Target
	finalizer Finalizer
	logger    *zap.Logger
}

// NewService creates a lifecycle manager. target tells the media server
// where egress output lands.
func NewService(store Store, egress Egress, target livekit.S3Target, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, egress: egress, target: target, logger: logger}
}

// SetFinalizer wires the optional post-completion queue.
func (s *Service) SetFinalizer(f Finalizer) { s.finalizer = f }

// Start begins recording one participant's track. The storage path is
// deterministic per (room, participant); a participant with a live recording
// gets AlreadyRecording. The row is inserted as starting before the media
// server is called, so a lost insert race can never launch two egress jobs.
func (s *Service) Start(ctx context.Context, roomID uuid.UUID, identity string, createdBy uuid.UUID) (*models.Recording, error) {
	active, err := s.store.FindActive(ctx, roomID, identity)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "active recording lookup failed", err)
	}
	if active != nil {
		return nil, apperr.Newf(apperr.CodeAlreadyRecording,
			"participant %s is already being recorded in this room", identity)
	}

	rec := &models.Recording{
		RoomID:              roomID,
		ParticipantIdentity: identity,
		StoragePath:         storage.RecordingPath(roomID.String(), identity, storage.DefaultExtension),
		CreatedBy:           createdBy,
	}
	if err := s.store.CreateStarting(ctx, rec); err != nil {
		if err == ErrActiveExists {
			return nil, apperr.Newf(apperr.CodeAlreadyRecording,
				"participant %s is already being recorded in this room", identity)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "recording create failed", err)
	}

	egressID, err := s.egress.StartParticipantEgress(ctx, roomID.String(), identity, rec.StoragePath, s.target)
	if err != nil {
		if _, ferr := s.store.MarkFailed(ctx, rec.ID); ferr != nil {
			s.logger.Error("mark failed after egress rejection",
				zap.Error(ferr), zap.String("recording_id", rec.ID.String()))
		}
		return nil, err
	}

	ok, err := s.store.SetRecording(ctx, rec.ID, egressID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "recording transition failed", err)
	}
	if !ok {
		// The row left starting before the ack landed (e.g. an egress
		// failure notification raced us). Report current state.
		cur, gerr := s.store.GetByID(ctx, rec.ID)
		if gerr == nil && cur != nil {
			return cur, nil
		}
		return nil, apperr.New(apperr.CodeInvalidState, "recording no longer in starting state")
	}
	rec.Status = models.RecordingStatusRecording
	rec.EgressID = egressID

	s.logger.Info("recording started",
		zap.String("recording_id", rec.ID.String()),
		zap.String("egress_id", egressID),
		zap.String("storage_path", rec.StoragePath))
	return rec, nil
}

// Stop ends a recording explicitly. Only legal from recording; stopping an
// already-completed recording is InvalidState so operator mistakes surface.
// The stop acknowledgement is applied through the same transition as
// out-of-band notifications; final size/duration may arrive later.
func (s *Service) Stop(ctx context.Context, recordingID uuid.UUID) (*models.Recording, error) {
	rec, err := s.store.GetByID(ctx, recordingID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "recording lookup failed", err)
	}
	if rec == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "recording %s not found", recordingID)
	}
	if rec.Status != models.RecordingStatusRecording {
		return nil, apperr.Newf(apperr.CodeInvalidState,
			"recording is %s, stop requires recording", rec.Status)
	}

	upd, err := s.egress.StopEgress(ctx, rec.EgressID)
	if err != nil {
		return nil, err
	}
	// An in-flight ack without a terminal status still means the egress is
	// ending; treat it as completion, metadata lands via notification or
	// the finalizer.
	if !upd.Failed {
		upd.Completed = true
	}
	if _, err := s.applyUpdate(ctx, rec, upd); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, recordingID)
}

// ApplyEgressUpdate handles an out-of-band egress notification. Unknown
// egress ids are NotFound; notifications for recordings already in a
// terminal state are a no-op, so redelivery is safe.
func (s *Service) ApplyEgressUpdate(ctx context.Context, upd *livekit.EgressUpdate) (bool, error) {
	if upd.EgressID == "" || (!upd.Completed && !upd.Failed) {
		return false, nil
	}
	rec, err := s.store.GetByEgressID(ctx, upd.EgressID)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, "recording lookup by egress failed", err)
	}
	if rec == nil {
		return false, apperr.Newf(apperr.CodeNotFound, "no recording for egress %s", upd.EgressID)
	}
	return s.applyUpdate(ctx, rec, upd)
}

// applyUpdate is the single authoritative transition to a terminal state.
func (s *Service) applyUpdate(ctx context.Context, rec *models.Recording, upd *livekit.EgressUpdate) (bool, error) {
	if upd.Failed {
		changed, err := s.store.MarkFailed(ctx, rec.ID)
		if err != nil {
			return false, apperr.Wrap(apperr.CodeInternal, "recording transition failed", err)
		}
		if changed {
			s.logger.Warn("recording failed",
				zap.String("recording_id", rec.ID.String()),
				zap.String("egress_id", upd.EgressID),
				zap.String("reason", upd.ErrorMsg))
		}
		return changed, nil
	}

	changed, err := s.store.Complete(ctx, rec.ID, upd.SizeBytes, upd.DurationSec)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, "recording transition failed", err)
	}
	if !changed {
		// Already terminal. A redelivered notification may still carry the
		// numbers the first one lacked.
		if upd.SizeBytes > 0 || upd.DurationSec > 0 {
			if err := s.store.BackfillMetadata(ctx, rec.ID, upd.SizeBytes, upd.DurationSec); err != nil {
				s.logger.Warn("metadata backfill failed",
					zap.Error(err), zap.String("recording_id", rec.ID.String()))
			}
		}
		return false, nil
	}

	s.logger.Info("recording completed",
		zap.String("recording_id", rec.ID.String()),
		zap.String("egress_id", upd.EgressID),
		zap.Int64("file_size", upd.SizeBytes),
		zap.Int("duration", upd.DurationSec))

	if s.finalizer != nil {
		payload := queue.FinalizePayload{
			RecordingID: rec.ID,
			RoomID:      rec.RoomID,
			StoragePath: rec.StoragePath,
		}
		if err := s.finalizer.EnqueueFinalize(ctx, payload); err != nil {
			s.logger.Warn("enqueue finalize failed",
				zap.Error(err), zap.String("recording_id", rec.ID.String()))
		}
	}
	return true, nil
}

// List returns the room's recordings, newest first.
func (s *Service) List(ctx context.Context, roomID uuid.UUID) ([]models.Recording, error) {
	list, err := s.store.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list recordings failed", err)
	}
	return list, nil
}

// Get returns a recording by id, NotFound when absent.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "recording lookup failed", err)
	}
	if rec == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "recording %s not found", id)
	}
	return rec, nil
}
