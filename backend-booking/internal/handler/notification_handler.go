package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/service"
	"github.com/bamanh2802/bookingcar/pkg/middleware"
	"github.com/bamanh2802/bookingcar/pkg/redis"
	"github.com/bamanh2802/bookingcar/pkg/response"
	"github.com/bamanh2802/bookingcar/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
)

const (
	streamKeepalive = 15 * time.Second
	streamMaxWait   = 30 * time.Minute
)

// NotificationHandler serves notification history, presence heartbeats and
// the live notification stream
type NotificationHandler struct {
	notifications *service.NotificationService
	redisClient   *redis.Client // For Pub/Sub subscription in SSE
}

// NewNotificationHandler creates a new notification handler. redisClient may
// be nil, in which case Stream is unavailable.
func NewNotificationHandler(notifications *service.NotificationService, redisClient *redis.Client) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		redisClient:   redisClient,
	}
}

// List handles GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	items, err := h.notifications.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(items))
}

// Heartbeat handles POST /presence/heartbeat
func (h *NotificationHandler) Heartbeat(c *gin.Context) {
	middleware.SkipAudit(c)

	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
		return
	}

	if err := h.notifications.Heartbeat(c.Request.Context(), userID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream handles GET /notifications/stream (SSE). The caller is marked online
// on connect and on every keepalive, so pushes reach it while it listens.
func (h *NotificationHandler) Stream(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.notification.stream")
	defer span.End()

	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
		return
	}
	if h.redisClient == nil {
		span.SetStatus(codes.Error, "stream unavailable")
		c.JSON(http.StatusServiceUnavailable, response.ServiceUnavailable("Notification stream is not available"))
		return
	}
	span.SetAttributes(telemetry.UserIDAttr(userID))

	if err := h.notifications.Heartbeat(ctx, userID); err != nil {
		telemetry.RecordError(span, err)
		handleError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Status(http.StatusOK)
	c.Writer.Flush()

	h.streamWithPubSub(ctx, c, userID)
	span.SetStatus(codes.Ok, "")
}

// streamWithPubSub relays messages from the per-user channel until the client
// leaves or the maximum wait elapses
func (h *NotificationHandler) streamWithPubSub(ctx context.Context, c *gin.Context, userID string) {
	pubsub := h.redisClient.Subscribe(ctx, service.NotificationChannel(userID))
	defer pubsub.Close()

	msgChan := pubsub.Channel()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	maxWait := time.NewTimer(streamMaxWait)
	defer maxWait.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: notification\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-keepalive.C:
			_ = h.notifications.Heartbeat(ctx, userID)
			c.Writer.WriteString(":keepalive\n\n")
			c.Writer.Flush()

		case <-maxWait.C:
			c.Writer.WriteString("event: timeout\ndata: {}\n\n")
			c.Writer.Flush()
			return
		}
	}
}
