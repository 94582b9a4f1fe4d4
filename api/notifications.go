package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Domenick1991/rentalwatch/internal/apiclient"
	"github.com/Domenick1991/rentalwatch/internal/service/notifications"
	"github.com/gin-gonic/gin"
)

type Inbox interface {
	State() notifications.State
	MarkRead(ctx context.Context, id int64) error
}

type NotificationHandler struct {
	inbox Inbox
}

func NewNotificationHandler(inbox Inbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

func (h *NotificationHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *gin.Context) {
	c.JSON(http.StatusOK, toInboxResponse(h.inbox.State()))
}

func (h *NotificationHandler) markRead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, notifications.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case apiclient.IsUnauthorized(err):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, toInboxResponse(h.inbox.State()))
}
