package rooms

import (
	"context"

	"github.com/google/uuid"

	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/apperr"
)

// MembershipChecker answers whether an identity belongs to a room.
type MembershipChecker interface {
	HasMember(ctx context.Context, roomID uuid.UUID, identity string) (bool, error)
}

// SetMembership wires the membership source used by AuthorizeAccess.
func (s *Service) SetMembership(m MembershipChecker) { s.members = m }

// AuthorizeAccess returns the room when the caller owns it or holds a
// membership row, AccessDenied otherwise. Checked before every
// state-mutating call and before signing download URLs.
func (s *Service) AuthorizeAccess(ctx context.Context, roomID, callerID uuid.UUID) (*models.Room, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID == callerID {
		return room, nil
	}
	if s.members != nil {
		ok, err := s.members.HasMember(ctx, roomID, callerID.String())
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "membership lookup failed", err)
		}
		if ok {
			return room, nil
		}
	}
	return nil, apperr.New(apperr.CodeAccessDenied, "caller does not own or belong to this room")
}
