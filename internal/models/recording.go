package models

import (
	"time"

	"github.com/google/uuid"
)

// Recording lifecycle statuses. Legal transitions:
// starting → recording → completed, and starting|recording → failed.
const (
	RecordingStatusStarting  = "starting"
	RecordingStatusRecording = "recording"
	RecordingStatusCompleted = "completed"
	RecordingStatusFailed    = "failed"
)

// IsTerminalRecordingStatus reports whether a status admits no further
// transitions.
func IsTerminalRecordingStatus(status string) bool {
	return status == RecordingStatusCompleted || status == RecordingStatusFailed
}

// Recording is one participant's audio track egressed to object storage.
// StoragePath is deterministic per (room, participant), so at most one live
// artifact exists per participant per room.
type Recording struct {
	ID                  uuid.UUID `json:"id"`
	RoomID              uuid.UUID `json:"room_id"`
	ParticipantIdentity string    `json:"participant_identity"`
	EgressID            string    `json:"egress_id,omitempty"`
	StoragePath         string    `json:"storage_path"`
	Status              string    `json:"status"`
	FileSize            int64     `json:"file_size"`
	Duration            int       `json:"duration"`
	CreatedBy           uuid.UUID `json:"created_by"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
