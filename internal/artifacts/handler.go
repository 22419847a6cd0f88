package artifacts

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/multispeaker/backend/internal/middleware"
	"github.com/multispeaker/backend/pkg/response"
)

// Handler exposes the download-URL endpoint.
type Handler struct {
	resolver *Resolver
	logger   *zap.Logger
}

func NewHandler(resolver *Resolver, logger *zap.Logger) *Handler {
	return &Handler{resolver: resolver, logger: logger}
}

// DownloadURL handles GET /recordings/download-url?path=...&ttl=...
// ttl is optional, in seconds.
func (h *Handler) DownloadURL(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		response.BadRequest(c, "path is required")
		return
	}

	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			response.BadRequest(c, "ttl must be a non-negative integer")
			return
		}
		ttl = time.Duration(secs) * time.Second
	}

	signed, err := h.resolver.GetDownloadURL(c.Request.Context(), middleware.CallerID(c), path, ttl)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, signed)
}
