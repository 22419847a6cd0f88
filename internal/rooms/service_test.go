package rooms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/apperr"
)

// fakeStore mimics the repository: one row per room, and the partial unique
// index on (owner_id, reserved_name) enforced under a mutex.
type fakeStore struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*models.Room

	creates int
	// loseInsert makes the next Create behave like a lost insert race:
	// another request's row appears and the insert reports a conflict.
	loseInsert bool
	winnerID   uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: map[uuid.UUID]*models.Room{}}
}

func (f *fakeStore) Create(ctx context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loseInsert {
		f.loseInsert = false
		winner := &models.Room{
			ID:           uuid.New(),
			Name:         room.Name,
			OwnerID:      room.OwnerID,
			ReservedName: room.ReservedName,
			CreatedAt:    time.Now(),
		}
		f.rooms[winner.ID] = winner
		f.winnerID = winner.ID
		return ErrReservedExists
	}
	if room.ReservedName != "" {
		for _, r := range f.rooms {
			if r.OwnerID == room.OwnerID && r.ReservedName == room.ReservedName {
				return ErrReservedExists
			}
		}
	}
	room.ID = uuid.New()
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	f.rooms[room.ID] = room
	f.creates++
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) GetReserved(ctx context.Context, ownerID uuid.UUID, reservedName string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rooms {
		if r.OwnerID == ownerID && r.ReservedName == reservedName {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeMembers struct {
	members map[string]bool
}

func (f *fakeMembers) HasMember(ctx context.Context, roomID uuid.UUID, identity string) (bool, error) {
	return f.members[roomID.String()+"/"+identity], nil
}

func TestResolveOrCreateEmptyReference(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	_, _, err := svc.ResolveOrCreate(context.Background(), uuid.New(), "  ")
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidReference, apperr.CodeOf(err))
}

func TestResolveOrCreateMalformedReference(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	_, _, err := svc.ResolveOrCreate(context.Background(), uuid.New(), "not-a-room-id")
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidReference, apperr.CodeOf(err))
}

func TestResolveOrCreateUnknownRoom(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	_, _, err := svc.ResolveOrCreate(context.Background(), uuid.New(), uuid.New().String())
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestResolveOrCreateByID(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	owner := uuid.New()

	created, err := svc.Create(context.Background(), owner, "Standup")
	require.NoError(t, err)

	room, outcome, err := svc.ResolveOrCreate(context.Background(), uuid.New(), created.ID.String())
	require.NoError(t, err)
	require.Equal(t, OutcomeExisting, outcome)
	require.Equal(t, created.ID, room.ID)
}

func TestResolveDemoCreatesOnce(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	owner := uuid.New()

	first, outcome, err := svc.ResolveOrCreate(context.Background(), owner, "demo")
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)
	require.Equal(t, DemoRoomName, first.Name)
	require.Equal(t, models.ReservedDemo, first.ReservedName)

	second, outcome, err := svc.ResolveOrCreate(context.Background(), owner, "demo")
	require.NoError(t, err)
	require.Equal(t, OutcomeExisting, outcome)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, store.creates)
}

func TestResolveDemoIsPerOwner(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	a, _, err := svc.ResolveOrCreate(context.Background(), uuid.New(), "demo")
	require.NoError(t, err)
	b, _, err := svc.ResolveOrCreate(context.Background(), uuid.New(), "demo")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestResolveDemoLostInsertRaceReturnsWinner(t *testing.T) {
	store := newFakeStore()
	store.loseInsert = true
	svc := NewService(store, nil)

	room, outcome, err := svc.ResolveOrCreate(context.Background(), uuid.New(), "demo")
	require.NoError(t, err)
	require.Equal(t, OutcomeExisting, outcome)
	require.Equal(t, store.winnerID, room.ID)
}

func TestResolveDemoConcurrent(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	owner := uuid.New()

	const n = 16
	ids := make(chan uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, _, err := svc.ResolveOrCreate(context.Background(), owner, "demo")
			require.NoError(t, err)
			ids <- room.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := <-ids
	for id := range ids {
		require.Equal(t, first, id)
	}
	require.Equal(t, 1, store.creates)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	_, err := svc.Create(context.Background(), uuid.New(), "   ")
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidReference, apperr.CodeOf(err))
}

func TestAuthorizeAccess(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	owner := uuid.New()
	member := uuid.New()
	stranger := uuid.New()

	room, err := svc.Create(context.Background(), owner, "Standup")
	require.NoError(t, err)

	svc.SetMembership(&fakeMembers{members: map[string]bool{
		room.ID.String() + "/" + member.String(): true,
	}})

	got, err := svc.AuthorizeAccess(context.Background(), room.ID, owner)
	require.NoError(t, err)
	require.Equal(t, room.ID, got.ID)

	_, err = svc.AuthorizeAccess(context.Background(), room.ID, member)
	require.NoError(t, err)

	_, err = svc.AuthorizeAccess(context.Background(), room.ID, stranger)
	require.Error(t, err)
	require.Equal(t, apperr.CodeAccessDenied, apperr.CodeOf(err))

	_, err = svc.AuthorizeAccess(context.Background(), uuid.New(), owner)
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
