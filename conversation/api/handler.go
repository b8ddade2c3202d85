package api

import (
	"net/http"
	"strconv"
	"time"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/conversation/repository"
	"grassroot-chatbot/backend/conversation/service"
	"grassroot-chatbot/backend/conversation/ws"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/shared/observability"

	"github.com/gin-gonic/gin"
)

var startedAt = time.Now()

// WebhookHandler receives channel webhooks and always answers 200. A
// non-2xx response would make the channel redeliver, and a redelivered
// turn is worse than a dropped one.
type WebhookHandler struct {
	safeNet *service.SafeNet
	locker  service.SenderLocker
	console *ws.Console
	metrics *observability.Metrics
	log     *logger.Logger
	env     string
}

func NewWebhookHandler(safeNet *service.SafeNet, locker service.SenderLocker, console *ws.Console, metrics *observability.Metrics, log *logger.Logger, env string) *WebhookHandler {
	return &WebhookHandler{safeNet: safeNet, locker: locker, console: console, metrics: metrics, log: log, env: env}
}

// Inbound handles one webhook delivery.
func (h *WebhookHandler) Inbound(c *gin.Context) {
	var webhook models.Webhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		// malformed bodies are the channel's problem, not a retry case
		h.log.Warn("unparseable webhook body", "error", err)
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	env, ok := models.Normalize(&webhook)
	if !ok {
		// status callbacks and empty deliveries end here
		h.metrics.WebhookDiscarded(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	ctx := c.Request.Context()
	h.metrics.TurnProcessed(ctx)

	release, err := h.locker.AcquireTurnLease(ctx, env.SenderID)
	if err != nil {
		// run unserialized rather than drop the turn
		h.log.Warn("turn lease unavailable", "error", err, "sender_id", env.SenderID)
	} else {
		defer release()
	}

	reply := h.safeNet.Handle(ctx, env)
	h.console.BroadcastTurn(env, reply)
	c.JSON(http.StatusOK, reply)
}

// Status reports liveness for the channel provider's uptime checks.
func (h *WebhookHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "up",
		"environment": h.env,
		"uptime":      time.Since(startedAt).Round(time.Second).String(),
	})
}

// AdminHandler exposes the turn log to operators.
type AdminHandler struct {
	repo repository.TurnRepository
}

func NewAdminHandler(repo repository.TurnRepository) *AdminHandler {
	return &AdminHandler{repo: repo}
}

// RecentTurns returns the newest turns for one sender, most recent first.
func (h *AdminHandler) RecentTurns(c *gin.Context) {
	senderID := c.Param("sender")
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = parsed
	}

	turns, err := h.repo.RecentBySender(c.Request.Context(), senderID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"senderId": senderID, "turns": turns})
}
