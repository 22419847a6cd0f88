package artifacts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/apperr"
	"github.com/multispeaker/backend/pkg/storage"
)

type fakeObjects struct {
	found        bool
	size         int64
	signedTTL    time.Duration
	signedKeys   []string
	headDeadline bool
	signDeadline bool
}

func (f *fakeObjects) SignDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	_, f.signDeadline = ctx.Deadline()
	f.signedTTL = expires
	f.signedKeys = append(f.signedKeys, key)
	return "https://recordings.example.com/" + key + "?sig=abc", nil
}

func (f *fakeObjects) ObjectSize(ctx context.Context, key string) (int64, bool, error) {
	_, f.headDeadline = ctx.Deadline()
	return f.size, f.found, nil
}

type fakeAccess struct {
	err  error
	room *models.Room
}

func (f *fakeAccess) AuthorizeAccess(ctx context.Context, roomID, callerID uuid.UUID) (*models.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.room, nil
}

func newTestResolver(objects ObjectStore, access RoomAuthorizer) *Resolver {
	return NewResolver(objects, access, time.Hour, 24*time.Hour, 10*time.Second, nil)
}

func TestDownloadURLMalformedPath(t *testing.T) {
	r := newTestResolver(&fakeObjects{}, &fakeAccess{})
	_, err := r.GetDownloadURL(context.Background(), uuid.New(), "not-a-path", 0)
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidReference, apperr.CodeOf(err))
}

func TestDownloadURLAccessDenied(t *testing.T) {
	access := &fakeAccess{err: apperr.New(apperr.CodeAccessDenied, "caller does not own or belong to this room")}
	r := newTestResolver(&fakeObjects{found: true}, access)

	path := storage.RecordingPath(uuid.New().String(), uuid.New().String(), "ogg")
	_, err := r.GetDownloadURL(context.Background(), uuid.New(), path, 0)
	require.Error(t, err)
	require.Equal(t, apperr.CodeAccessDenied, apperr.CodeOf(err))
}

func TestDownloadURLMissingArtifact(t *testing.T) {
	r := newTestResolver(&fakeObjects{found: false}, &fakeAccess{room: &models.Room{ID: uuid.New()}})

	path := storage.RecordingPath(uuid.New().String(), uuid.New().String(), "ogg")
	_, err := r.GetDownloadURL(context.Background(), uuid.New(), path, 0)
	require.Error(t, err)
	require.Equal(t, apperr.CodeArtifactNotFound, apperr.CodeOf(err))
}

func TestDownloadURLDefaultTTL(t *testing.T) {
	objects := &fakeObjects{found: true, size: 102400}
	r := newTestResolver(objects, &fakeAccess{room: &models.Room{ID: uuid.New()}})

	path := storage.RecordingPath(uuid.New().String(), uuid.New().String(), "ogg")
	signed, err := r.GetDownloadURL(context.Background(), uuid.New(), path, 0)
	require.NoError(t, err)
	require.Equal(t, 3600, signed.ExpiresIn)
	require.Equal(t, time.Hour, objects.signedTTL)
	require.Contains(t, signed.URL, path)
}

func TestDownloadURLClampsTTL(t *testing.T) {
	objects := &fakeObjects{found: true}
	r := newTestResolver(objects, &fakeAccess{room: &models.Room{ID: uuid.New()}})

	path := storage.RecordingPath(uuid.New().String(), uuid.New().String(), "ogg")
	signed, err := r.GetDownloadURL(context.Background(), uuid.New(), path, 96*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int((24 * time.Hour).Seconds()), signed.ExpiresIn)
	require.Equal(t, 24*time.Hour, objects.signedTTL)
}

func TestDownloadURLBoundsStoreCalls(t *testing.T) {
	objects := &fakeObjects{found: true}
	r := newTestResolver(objects, &fakeAccess{room: &models.Room{ID: uuid.New()}})

	// The request context carries no deadline; both store calls must still
	// run under one.
	path := storage.RecordingPath(uuid.New().String(), uuid.New().String(), "ogg")
	_, err := r.GetDownloadURL(context.Background(), uuid.New(), path, 0)
	require.NoError(t, err)
	require.True(t, objects.headDeadline)
	require.True(t, objects.signDeadline)
}

func TestDownloadURLCustomTTL(t *testing.T) {
	objects := &fakeObjects{found: true}
	r := newTestResolver(objects, &fakeAccess{room: &models.Room{ID: uuid.New()}})

	path := storage.RecordingPath(uuid.New().String(), uuid.New().String(), "ogg")
	signed, err := r.GetDownloadURL(context.Background(), uuid.New(), path, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 900, signed.ExpiresIn)
	require.Equal(t, 15*time.Minute, objects.signedTTL)
}
