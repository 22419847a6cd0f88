package rooms

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/apperr"
)

// DemoRoomName is the display name given to a freshly created demo room.
const DemoRoomName = "Demo Room"

// ResolveOutcome tags whether ResolveOrCreate found or created the room.
type ResolveOutcome string

const (
	// OutcomeExisting means the room already existed.
	OutcomeExisting ResolveOutcome = "existing"
	// OutcomeCreated means this call created the room.
	OutcomeCreated ResolveOutcome = "created"
)

// Store is the persistence surface the registry needs.
type Store interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetReserved(ctx context.Context, ownerID uuid.UUID, reservedName string) (*models.Room, error)
}

// Service is the room registry: it resolves room references and owns the
// reserved-room dedup semantics.
type Service struct {
	store   Store
	members MembershipChecker
	logger  *zap.Logger
}

// NewService creates a room registry.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// ResolveOrCreate maps a room reference to a room. A concrete UUID is looked
// up; the symbolic reference "demo" resolves to the caller's reserved demo
// room, creating it at most once per owner. Concurrent callers racing on the
// create all receive the same room: a lost insert re-reads the winner
// instead of erroring.
func (s *Service) ResolveOrCreate(ctx context.Context, ownerID uuid.UUID, ref string) (*models.Room, ResolveOutcome, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, "", apperr.New(apperr.CodeInvalidReference, "room reference is empty")
	}

	if ref == models.ReservedDemo {
		return s.resolveReserved(ctx, ownerID, models.ReservedDemo)
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, "", apperr.Newf(apperr.CodeInvalidReference, "malformed room id %q", ref)
	}
	room, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeInternal, "room lookup failed", err)
	}
	if room == nil {
		return nil, "", apperr.Newf(apperr.CodeNotFound, "room %s not found", id)
	}
	return room, OutcomeExisting, nil
}

func (s *Service) resolveReserved(ctx context.Context, ownerID uuid.UUID, reservedName string) (*models.Room, ResolveOutcome, error) {
	room, err := s.store.GetReserved(ctx, ownerID, reservedName)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeInternal, "reserved room lookup failed", err)
	}
	if room != nil {
		return room, OutcomeExisting, nil
	}

	candidate := &models.Room{
		Name:         DemoRoomName,
		OwnerID:      ownerID,
		ReservedName: reservedName,
	}
	err = s.store.Create(ctx, candidate)
	if err == nil {
		s.logger.Info("reserved room created",
			zap.String("room_id", candidate.ID.String()),
			zap.String("owner_id", ownerID.String()))
		return candidate, OutcomeCreated, nil
	}
	if !errors.Is(err, ErrReservedExists) {
		return nil, "", apperr.Wrap(apperr.CodeInternal, "reserved room create failed", err)
	}

	// Lost the insert race; the winner's row is the caller's room.
	room, err = s.store.GetReserved(ctx, ownerID, reservedName)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeInternal, "reserved room re-read failed", err)
	}
	if room == nil {
		return nil, "", apperr.New(apperr.CodeInternal, "reserved room vanished after duplicate-key conflict")
	}
	return room, OutcomeExisting, nil
}

// Create registers an arbitrary user-named room. No uniqueness constraint
// applies to user-chosen names.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, name string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeInvalidReference, "room name is empty")
	}
	room := &models.Room{Name: name, OwnerID: ownerID}
	if err := s.store.Create(ctx, room); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "room create failed", err)
	}
	return room, nil
}

// Get returns a room by id, NotFound when absent.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "room lookup failed", err)
	}
	if room == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "room %s not found", id)
	}
	return room, nil
}
