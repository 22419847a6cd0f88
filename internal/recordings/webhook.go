package recordings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/webhook"
	"go.uber.org/zap"

	lk "github.com/multispeaker/backend/internal/livekit"
	"github.com/multispeaker/backend/pkg/apperr"
)

// WebhookHandler receives signed egress notifications from the media server.
// Completion delivered here runs through the same transition function as an
// explicit stop, so egress that ends on its own (participant disconnect) is
// reconciled identically.
type WebhookHandler struct {
	svc      *Service
	verifier auth.KeyProvider
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler validating against the media
// server API key/secret.
func NewWebhookHandler(svc *Service, apiKey, apiSecret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		svc:      svc,
		verifier: auth.NewSimpleKeyProvider(apiKey, apiSecret),
		logger:   logger,
	}
}

// Handle handles POST /webhooks/livekit. Redelivery of the same event is a
// no-op, so the endpoint always acks known-room events with 200.
func (h *WebhookHandler) Handle(c *gin.Context) {
	event, err := webhook.ReceiveWebhookEvent(c.Request, h.verifier)
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid webhook signature"})
		return
	}

	switch event.Event {
	case webhook.EventEgressUpdated, webhook.EventEgressEnded:
		if event.EgressInfo == nil {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
		upd := lk.UpdateFromEgressInfo(event.EgressInfo)
		changed, err := h.svc.ApplyEgressUpdate(c.Request.Context(), upd)
		if err != nil {
			if apperr.Is(err, apperr.CodeNotFound) {
				// Egress we did not start (or a row already purged); ack so
				// the media server stops redelivering.
				h.logger.Debug("webhook for unknown egress", zap.String("egress_id", upd.EgressID))
				c.JSON(http.StatusOK, gin.H{"success": true})
				return
			}
			h.logger.Error("webhook apply failed", zap.Error(err), zap.String("egress_id", upd.EgressID))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false})
			return
		}
		h.logger.Info("egress webhook processed",
			zap.String("event", event.Event),
			zap.String("egress_id", upd.EgressID),
			zap.Bool("changed", changed))
	default:
		// Room/participant events are not tracked here.
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
