package api

import (
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/service/booking"
	"github.com/Domenick1991/rentalwatch/internal/service/notifications"
)

type bookingResponse struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	CarID      int64  `json:"car_id"`
	CarName    string `json:"car_name,omitempty"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
	TotalPrice string `json:"total_price"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type snapshotResponse struct {
	BookingID        int64            `json:"booking_id"`
	Loaded           bool             `json:"loaded"`
	Status           string           `json:"status,omitempty"`
	Phase            string           `json:"phase,omitempty"`
	RemainingSeconds int64            `json:"remaining_seconds"`
	Deadline         string           `json:"deadline,omitempty"`
	Ticking          bool             `json:"ticking"`
	Polling          bool             `json:"polling"`
	LastError        string           `json:"last_error,omitempty"`
	UpdatedAt        string           `json:"updated_at,omitempty"`
	Booking          *bookingResponse `json:"booking,omitempty"`
}

type pendingResponse struct {
	bookingResponse
	Phase            string `json:"phase"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

type groupsResponse struct {
	Pending   []pendingResponse `json:"pending"`
	Current   []bookingResponse `json:"current"`
	History   []bookingResponse `json:"history"`
	Loaded    bool              `json:"loaded"`
	LastError string            `json:"last_error,omitempty"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type notificationResponse struct {
	ID        int64  `json:"id"`
	BookingID *int64 `json:"booking_id,omitempty"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at,omitempty"`
}

type inboxResponse struct {
	Items       []notificationResponse `json:"items"`
	UnreadCount int                    `json:"unread_count"`
	Loaded      bool                   `json:"loaded"`
	LastError   string                 `json:"last_error,omitempty"`
	UpdatedAt   string                 `json:"updated_at,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toBookingResponse(b domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:         b.ID,
		Status:     string(b.Status),
		CarID:      b.CarID,
		StartTime:  formatTime(b.StartTime),
		EndTime:    formatTime(b.EndTime),
		TotalPrice: b.TotalPrice.String(),
		CreatedAt:  formatTime(b.CreatedAt),
	}
	if b.Car != nil {
		resp.CarName = b.Car.Brand + " " + b.Car.Name
	}
	return resp
}

func toBookingResponses(items []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toBookingResponse(b))
	}
	return out
}

func toSnapshotResponse(s booking.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		BookingID:        s.BookingID,
		Loaded:           s.Loaded,
		Status:           string(s.Status),
		Phase:            string(s.Phase),
		RemainingSeconds: s.RemainingSeconds,
		Deadline:         formatTime(s.Deadline),
		Ticking:          s.Ticking,
		Polling:          s.Polling,
		LastError:        s.LastError,
		UpdatedAt:        formatTime(s.UpdatedAt),
	}
	if s.Booking != nil {
		b := toBookingResponse(*s.Booking)
		resp.Booking = &b
	}
	return resp
}

func toGroupsResponse(g booking.Groups) groupsResponse {
	resp := groupsResponse{
		Pending:   make([]pendingResponse, 0, len(g.Pending)),
		Current:   toBookingResponses(g.Current),
		History:   toBookingResponses(g.History),
		Loaded:    g.Loaded,
		LastError: g.LastError,
		UpdatedAt: formatTime(g.UpdatedAt),
	}
	for _, p := range g.Pending {
		resp.Pending = append(resp.Pending, pendingResponse{
			bookingResponse:  toBookingResponse(p.Booking),
			Phase:            string(p.Phase),
			RemainingSeconds: p.RemainingSeconds,
		})
	}
	return resp
}

func toInboxResponse(s notifications.State) inboxResponse {
	resp := inboxResponse{
		Items:       make([]notificationResponse, 0, len(s.Items)),
		UnreadCount: s.UnreadCount,
		Loaded:      s.Loaded,
		LastError:   s.LastError,
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
	for _, n := range s.Items {
		resp.Items = append(resp.Items, notificationResponse{
			ID:        n.ID,
			BookingID: n.BookingID,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: formatTime(n.CreatedAt),
		})
	}
	return resp
}
