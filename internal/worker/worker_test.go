package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/queue"
)

type fakeStore struct {
	recs       map[uuid.UUID]*models.Recording
	backfilled map[uuid.UUID]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: map[uuid.UUID]*models.Recording{}, backfilled: map[uuid.UUID]int64{}}
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	if r, ok := f.recs[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) BackfillMetadata(ctx context.Context, id uuid.UUID, fileSize int64, duration int) error {
	f.backfilled[id] = fileSize
	return nil
}

type fakeObjects struct {
	size     int64
	found    bool
	heads    int
	deadline bool
}

func (f *fakeObjects) ObjectSize(ctx context.Context, key string) (int64, bool, error) {
	f.heads++
	_, f.deadline = ctx.Deadline()
	return f.size, f.found, nil
}

func finalizeJob(t *testing.T, rec *models.Recording) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(queue.FinalizePayload{
		RecordingID: rec.ID,
		RoomID:      rec.RoomID,
		StoragePath: rec.StoragePath,
	})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.New().String(), Type: queue.JobTypeFinalize, Payload: payload}
}

func completedRecording() *models.Recording {
	roomID := uuid.New()
	return &models.Recording{
		ID:          uuid.New(),
		RoomID:      roomID,
		StoragePath: roomID.String() + "/" + uuid.New().String() + ".ogg",
		Status:      models.RecordingStatusCompleted,
	}
}

func TestProcessBackfillsSize(t *testing.T) {
	store := newFakeStore()
	objects := &fakeObjects{size: 102400, found: true}
	p := NewFinalizeProcessor(nil, store, objects, 0, nil)

	rec := completedRecording()
	store.recs[rec.ID] = rec

	require.NoError(t, p.Process(context.Background(), finalizeJob(t, rec)))
	require.Equal(t, int64(102400), store.backfilled[rec.ID])
}

func TestProcessSkipsWhenSizeAlreadyKnown(t *testing.T) {
	store := newFakeStore()
	objects := &fakeObjects{size: 102400, found: true}
	p := NewFinalizeProcessor(nil, store, objects, 0, nil)

	rec := completedRecording()
	rec.FileSize = 4096
	store.recs[rec.ID] = rec

	require.NoError(t, p.Process(context.Background(), finalizeJob(t, rec)))
	require.Zero(t, objects.heads)
	require.NotContains(t, store.backfilled, rec.ID)
}

func TestProcessSkipsNonCompleted(t *testing.T) {
	store := newFakeStore()
	objects := &fakeObjects{found: true}
	p := NewFinalizeProcessor(nil, store, objects, 0, nil)

	rec := completedRecording()
	rec.Status = models.RecordingStatusFailed
	store.recs[rec.ID] = rec

	require.NoError(t, p.Process(context.Background(), finalizeJob(t, rec)))
	require.Zero(t, objects.heads)
}

func TestProcessUnknownRecordingIsDropped(t *testing.T) {
	p := NewFinalizeProcessor(nil, newFakeStore(), &fakeObjects{}, 0, nil)
	require.NoError(t, p.Process(context.Background(), finalizeJob(t, completedRecording())))
}

func TestProcessMissingArtifactErrorsForRetry(t *testing.T) {
	store := newFakeStore()
	p := NewFinalizeProcessor(nil, store, &fakeObjects{found: false}, 0, nil)

	rec := completedRecording()
	store.recs[rec.ID] = rec

	require.Error(t, p.Process(context.Background(), finalizeJob(t, rec)))
	require.NotContains(t, store.backfilled, rec.ID)
}

func TestProcessBoundsObjectStoreCall(t *testing.T) {
	store := newFakeStore()
	objects := &fakeObjects{size: 2048, found: true}
	p := NewFinalizeProcessor(nil, store, objects, 0, nil)

	rec := completedRecording()
	store.recs[rec.ID] = rec

	require.NoError(t, p.Process(context.Background(), finalizeJob(t, rec)))
	require.True(t, objects.deadline)
}

func TestPauseWaitsForBackoff(t *testing.T) {
	p := NewFinalizeProcessor(nil, newFakeStore(), &fakeObjects{}, 0, nil)
	p.backoff = 20 * time.Millisecond

	start := time.Now()
	p.pause(context.Background())
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPauseReturnsOnCancel(t *testing.T) {
	p := NewFinalizeProcessor(nil, newFakeStore(), &fakeObjects{}, 0, nil)
	p.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.pause(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pause did not return on cancelled context")
	}
}

func TestProcessDropsUnknownJobType(t *testing.T) {
	p := NewFinalizeProcessor(nil, newFakeStore(), &fakeObjects{}, 0, nil)
	job := &queue.Job{ID: uuid.New().String(), Type: "unrelated", Payload: json.RawMessage(`{}`)}
	require.NoError(t, p.Process(context.Background(), job))
}
