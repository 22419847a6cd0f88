package recordings

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/multispeaker/backend/internal/middleware"
	"github.com/multispeaker/backend/internal/models"
	"github.com/multispeaker/backend/pkg/response"
)

// RoomAuthorizer checks room access for the caller before any
// state-mutating recording call.
type RoomAuthorizer interface {
	AuthorizeAccess(ctx context.Context, roomID, callerID uuid.UUID) (*models.Room, error)
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	svc    *Service
	access RoomAuthorizer
	logger *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(svc *Service, access RoomAuthorizer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, access: access, logger: logger}
}

// Start handles POST /rooms/:id/recordings/start. Records the caller's own
// track; a body identity would let any member record anyone, so it is not
// accepted.
func (h *Handler) Start(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	callerID := middleware.CallerID(c)
	if _, err := h.access.AuthorizeAccess(c.Request.Context(), roomID, callerID); err != nil {
		response.Error(c, err)
		return
	}

	rec, err := h.svc.Start(c.Request.Context(), roomID, callerID.String(), callerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rec)
}

// Stop handles POST /recordings/:id/stop.
func (h *Handler) Stop(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), recordingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, err := h.access.AuthorizeAccess(c.Request.Context(), rec.RoomID, middleware.CallerID(c)); err != nil {
		response.Error(c, err)
		return
	}

	stopped, err := h.svc.Stop(c.Request.Context(), recordingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stopped)
}

// ListByRoom handles GET /rooms/:id/recordings, newest first.
func (h *Handler) ListByRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	if _, err := h.access.AuthorizeAccess(c.Request.Context(), roomID, middleware.CallerID(c)); err != nil {
		response.Error(c, err)
		return
	}
	list, err := h.svc.List(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}
