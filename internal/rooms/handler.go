package rooms

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/multispeaker/backend/internal/middleware"
	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/response"
)

// TokenIssuer issues media server join tokens. Issuance is side-effect-free
// on local state.
type TokenIssuer interface {
	IssueToken(roomID, identity, displayName string) (string, error)
	URL() string
}

// JoinTracker records and lists room membership.
type JoinTracker interface {
	RecordJoin(ctx context.Context, roomID uuid.UUID, identity string, joinedAt time.Time) error
	List(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error)
}

// RoomStore is the persistence surface the handler needs beyond the registry.
type RoomStore interface {
	List(ctx context.Context) ([]models.Room, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RecordingSource lists a room's recordings, used to find the artifacts a
// room deletion leaves behind.
type RecordingSource interface {
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Recording, error)
}

// ObjectRemover removes stored artifacts.
type ObjectRemover interface {
	DeleteObject(ctx context.Context, key string) error
}

// Handler handles room HTTP endpoints including the join flow.
type Handler struct {
	svc        *Service
	repo       RoomStore
	tracker    JoinTracker
	tokens     TokenIssuer
	recordings RecordingSource
	objects    ObjectRemover
	logger     *zap.Logger
}

// NewHandler creates a rooms handler.
func NewHandler(svc *Service, repo RoomStore, tracker JoinTracker, tokens TokenIssuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, repo: repo, tracker: tracker, tokens: tokens, logger: logger}
}

// SetArtifactCleanup wires artifact removal into room deletion. Optional;
// without it deletion only removes database rows.
func (h *Handler) SetArtifactCleanup(recordings RecordingSource, objects ObjectRemover) {
	h.recordings = recordings
	h.objects = objects
}

// CreateRequest is the body for POST /rooms.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// JoinResponse is the body returned by POST /rooms/:id/join.
type JoinResponse struct {
	Room       models.Room    `json:"room"`
	Outcome    ResolveOutcome `json:"outcome"`
	Token      string         `json:"token"`
	LiveKitURL string         `json:"livekit_url"`
}

// List handles GET /rooms.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list rooms failed", zap.Error(err))
		response.Internal(c, "failed to list rooms")
		return
	}
	response.OK(c, list)
}

// Create handles POST /rooms.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	room, err := h.svc.Create(c.Request.Context(), middleware.CallerID(c), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// Join handles POST /rooms/:id/join. The :id is a room reference: a room
// UUID or the reserved demo name. The flow is: resolve or create the
// room, issue a fresh join token, then record membership. A membership write
// failure after token issuance is logged, not surfaced; the token already
// grants access.
func (h *Handler) Join(c *gin.Context) {
	callerID := middleware.CallerID(c)
	identity := callerID.String()

	room, outcome, err := h.svc.ResolveOrCreate(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.tokens.IssueToken(room.ID.String(), identity, middleware.CallerName(c))
	if err != nil {
		h.logger.Error("token issuance failed",
			zap.Error(err), zap.String("room_id", room.ID.String()))
		response.Error(c, err)
		return
	}

	if err := h.tracker.RecordJoin(c.Request.Context(), room.ID, identity, time.Now().UTC()); err != nil {
		h.logger.Warn("membership bookkeeping failed",
			zap.Error(err),
			zap.String("room_id", room.ID.String()),
			zap.String("identity", identity))
	}

	response.OK(c, JoinResponse{
		Room:       *room,
		Outcome:    outcome,
		Token:      token,
		LiveKitURL: h.tokens.URL(),
	})
}

// Participants handles GET /rooms/:id/participants, ordered by join time.
func (h *Handler) Participants(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	if _, err := h.svc.Get(c.Request.Context(), roomID); err != nil {
		response.Error(c, err)
		return
	}
	list, err := h.tracker.List(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("list participants failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to list participants")
		return
	}
	response.OK(c, list)
}

// RenameRequest is the body for PATCH /rooms/:id.
type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Rename handles PATCH /rooms/:id. Owner only; the display name is the only
// mutable attribute, and renaming never touches the reserved marker.
func (h *Handler) Rename(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	room, err := h.svc.Get(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if room.OwnerID != middleware.CallerID(c) {
		response.Forbidden(c, "only the room owner can rename it")
		return
	}
	if err := h.repo.Rename(c.Request.Context(), roomID, req.Name); err != nil {
		h.logger.Error("rename room failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to rename room")
		return
	}
	room.Name = req.Name
	response.OK(c, room)
}

// Delete handles DELETE /rooms/:id. Owner only.
func (h *Handler) Delete(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	room, err := h.svc.Get(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if room.OwnerID != middleware.CallerID(c) {
		response.Forbidden(c, "only the room owner can delete it")
		return
	}
	h.removeArtifacts(c.Request.Context(), roomID)
	if err := h.repo.Delete(c.Request.Context(), roomID); err != nil {
		h.logger.Error("delete room failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to delete room")
		return
	}
	response.NoContent(c)
}

// removeArtifacts deletes the room's recorded objects. Best-effort: the
// database rows cascade with the room either way, and a leftover object is
// unreachable once its recording row is gone.
func (h *Handler) removeArtifacts(ctx context.Context, roomID uuid.UUID) {
	if h.recordings == nil || h.objects == nil {
		return
	}
	recs, err := h.recordings.ListByRoom(ctx, roomID)
	if err != nil {
		h.logger.Warn("listing recordings for cleanup failed",
			zap.Error(err), zap.String("room_id", roomID.String()))
		return
	}
	// Paths are deterministic per participant, so dedup before deleting.
	seen := make(map[string]bool)
	for _, rec := range recs {
		if rec.StoragePath == "" || seen[rec.StoragePath] {
			continue
		}
		seen[rec.StoragePath] = true
		if err := h.objects.DeleteObject(ctx, rec.StoragePath); err != nil {
			h.logger.Warn("artifact delete failed",
				zap.Error(err), zap.String("storage_path", rec.StoragePath))
		}
	}
}
