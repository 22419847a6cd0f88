package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservedDemo is the per-owner demo room marker. Resolution of the symbolic
// reference "demo" dedups on (owner_id, reserved_name), not on display name.
const ReservedDemo = "demo"

// Room is a voice room participants join to record individual tracks.
type Room struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	OwnerID      uuid.UUID `json:"owner_id"`
	ReservedName string    `json:"reserved_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Participant is one membership row per (room, identity). Join is
// idempotent; membership history is retained.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	RoomID   uuid.UUID `json:"room_id"`
	Identity string    `json:"identity"`
	JoinedAt time.Time `json:"joined_at"`
}
