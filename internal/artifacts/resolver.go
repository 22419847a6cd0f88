// Package artifacts turns stored recording paths into time-limited signed
// download URLs, enforcing room ownership/membership before signing.
package artifacts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/apperr"
	"github.com/multispeaker/backend/pkg/storage"
)

// ObjectStore is the object-store surface the resolver needs.
type ObjectStore interface {
	SignDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
	ObjectSize(ctx context.Context, key string) (size int64, found bool, err error)
}

// RoomAuthorizer checks whether the caller owns or belongs to the room a
// path resolves to.
type RoomAuthorizer interface {
	AuthorizeAccess(ctx context.Context, roomID, callerID uuid.UUID) (*models.Room, error)
}

// SignedURL is a resolved download link. Single purpose, never cached
// beyond its own expiry.
type SignedURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// Resolver resolves recording paths to signed URLs.
type Resolver struct {
	store       ObjectStore
	access      RoomAuthorizer
	defaultTTL  time.Duration
	maxTTL      time.Duration
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewResolver creates an artifact resolver. Every object-store call runs
// under callTimeout; no local state is held while awaiting.
func NewResolver(store ObjectStore, access RoomAuthorizer, defaultTTL, maxTTL, callTimeout time.Duration, logger *zap.Logger) *Resolver {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if maxTTL <= 0 {
		maxTTL = 24 * time.Hour
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, access: access, defaultTTL: defaultTTL, maxTTL: maxTTL, callTimeout: callTimeout, logger: logger}
}

// GetDownloadURL signs a download link for the artifact at path, valid for
// ttl (clamped to the configured maximum; zero means the default). The
// caller must own or belong to the room encoded in the path, and the object
// must exist.
func (r *Resolver) GetDownloadURL(ctx context.Context, callerID uuid.UUID, path string, ttl time.Duration) (*SignedURL, error) {
	roomID, _, err := storage.ParseRecordingPath(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidReference, "malformed recording path", err)
	}
	if _, err := r.access.AuthorizeAccess(ctx, roomID, callerID); err != nil {
		return nil, err
	}

	headCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	_, found, err := r.store.ObjectSize(headCtx, path)
	cancel()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUpstream, "object store lookup failed", err)
	}
	if !found {
		return nil, apperr.Newf(apperr.CodeArtifactNotFound, "no artifact at %s", path)
	}

	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if ttl > r.maxTTL {
		ttl = r.maxTTL
	}
	signCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	url, err := r.store.SignDownloadURL(signCtx, path, ttl)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUpstream, "signing download URL failed", err)
	}
	return &SignedURL{URL: url, ExpiresIn: int(ttl.Seconds())}, nil
}
