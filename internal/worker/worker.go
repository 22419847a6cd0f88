// Package worker runs the background finalize loop: after an egress
// completes, verify the artifact landed in the object store and backfill
// file size when the egress report omitted it.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/queue"
)

// RecordingStore is the recording persistence surface the worker needs.
type RecordingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	BackfillMetadata(ctx context.Context, id uuid.UUID, fileSize int64, duration int) error
}

// ObjectStore reports the size of stored artifacts.
type ObjectStore interface {
	ObjectSize(ctx context.Context, key string) (size int64, found bool, err error)
}

// FinalizeProcessor consumes finalize jobs and reconciles recording rows
// against the object store. The loop is serial, so object-store calls run
// under storeTimeout; a stalled HeadObject must not park the worker.
type FinalizeProcessor struct {
	queue        *queue.Queue
	store        RecordingStore
	objects      ObjectStore
	storeTimeout time.Duration
	backoff      time.Duration
	logger       *zap.Logger
}

func NewFinalizeProcessor(q *queue.Queue, store RecordingStore, objects ObjectStore, storeTimeout time.Duration, logger *zap.Logger) *FinalizeProcessor {
	if storeTimeout <= 0 {
		storeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinalizeProcessor{
		queue:        q,
		store:        store,
		objects:      objects,
		storeTimeout: storeTimeout,
		backoff:      queue.RetryBackoff,
		logger:       logger,
	}
}

// Run dequeues and processes jobs until ctx is cancelled.
func (p *FinalizeProcessor) Run(ctx context.Context) {
	p.logger.Info("finalize worker started")
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("finalize worker stopping")
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			p.pause(ctx)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Warn("finalize job failed",
				zap.String("job_id", job.ID),
				zap.Int("attempt", job.Attempt),
				zap.Error(err))
			if rerr := p.queue.Retry(ctx, job); rerr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(rerr), zap.String("job_id", job.ID))
			}
			p.pause(ctx)
		}
	}
}

// pause waits the retry backoff, returning early on shutdown.
func (p *FinalizeProcessor) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}

// Process handles one finalize job. Terminal conditions (unknown recording,
// metadata already present) succeed without side effects so the job is not
// retried.
func (p *FinalizeProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeFinalize {
		p.logger.Warn("skipping unknown job type", zap.String("type", string(job.Type)))
		return nil
	}
	var payload queue.FinalizePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Warn("discarding malformed finalize payload", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	rec, err := p.store.GetByID(ctx, payload.RecordingID)
	if err != nil {
		return fmt.Errorf("load recording %s: %w", payload.RecordingID, err)
	}
	if rec == nil {
		p.logger.Warn("finalize job for unknown recording", zap.String("recording_id", payload.RecordingID.String()))
		return nil
	}
	if rec.Status != models.RecordingStatusCompleted {
		p.logger.Debug("recording not completed, skipping finalize",
			zap.String("recording_id", rec.ID.String()),
			zap.String("status", rec.Status))
		return nil
	}
	if rec.FileSize > 0 {
		return nil
	}

	headCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	size, found, err := p.objects.ObjectSize(headCtx, payload.StoragePath)
	cancel()
	if err != nil {
		return fmt.Errorf("head %s: %w", payload.StoragePath, err)
	}
	if !found {
		// Egress upload can lag the completion event; retry picks it up.
		return fmt.Errorf("artifact not yet in object store: %s", payload.StoragePath)
	}
	if err := p.store.BackfillMetadata(ctx, rec.ID, size, 0); err != nil {
		return fmt.Errorf("backfill recording %s: %w", rec.ID, err)
	}
	p.logger.Info("recording finalized",
		zap.String("recording_id", rec.ID.String()),
		zap.Int64("file_size", size))
	return nil
}
