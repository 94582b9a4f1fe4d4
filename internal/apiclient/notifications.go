package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Domenick1991/rentalwatch/internal/domain"
)

func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var items []notificationDTO
	if err := c.getItems(ctx, "/notifications/", &items); err != nil {
		return nil, err
	}
	return convertAll(items, notificationDTO.toDomain)
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodPatch, fmt.Sprintf("/notifications/%d/read", id), nil).Err()
}

// Announcement is an admin message to one user or, with Broadcast, to all.
type Announcement struct {
	Message   string `json:"message"`
	Broadcast bool   `json:"broadcast"`
	UserID    int64  `json:"user_id,omitempty"`
}

func (c *Client) SendNotification(ctx context.Context, a Announcement) error {
	a.Message = strings.TrimSpace(a.Message)
	if a.Message == "" {
		return domain.ValidationError{Field: "message", Msg: "is required"}
	}
	if !a.Broadcast && a.UserID <= 0 {
		return domain.ValidationError{Field: "user_id", Msg: "is required for single notifications"}
	}
	return c.Do(ctx, http.MethodPost, "/notifications/", a).Err()
}
