package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Domenick1991/rentalwatch/internal/domain"
)

type createBookingRequest struct {
	CarID      int64  `json:"car_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	CouponCode string `json:"coupon_code,omitempty"`
}

// CreateBooking submits a booking request. The returned booking always has
// an ID; when the server echoes the full object the other fields are set too.
func (c *Client) CreateBooking(ctx context.Context, in domain.CreateBookingInput) (domain.Booking, error) {
	in.CouponCode = strings.TrimSpace(in.CouponCode)
	if err := in.Validate(); err != nil {
		return domain.Booking{}, err
	}

	env := c.Do(ctx, http.MethodPost, "/bookings/", createBookingRequest{
		CarID:      in.CarID,
		StartTime:  domain.FormatServerTime(in.StartTime),
		EndTime:    domain.FormatServerTime(in.EndTime),
		CouponCode: in.CouponCode,
	})
	if err := env.Err(); err != nil {
		return domain.Booking{}, err
	}

	id, ok := extractBookingID(env.Data)
	if !ok {
		return domain.Booking{}, fmt.Errorf("create booking response has no booking id")
	}

	var resp struct {
		Booking *bookingDTO `json:"booking"`
	}
	if err := env.Decode(&resp); err == nil && resp.Booking != nil && resp.Booking.Status != "" {
		if b, err := resp.Booking.toDomain(); err == nil {
			b.ID = id
			return b, nil
		}
	}

	return domain.Booking{
		ID:        id,
		CarID:     in.CarID,
		Status:    domain.BookingStatusPending,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}, nil
}

// GetBooking fetches one booking. The response's top-level status, when
// present, is authoritative over the nested copy.
func (c *Client) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	env := c.Do(ctx, http.MethodGet, fmt.Sprintf("/bookings/%d", id), nil)
	if err := env.Err(); err != nil {
		if env.Status == http.StatusNotFound {
			return domain.Booking{}, domain.NotFoundError{Resource: "booking", Err: err}
		}
		return domain.Booking{}, err
	}

	var resp struct {
		Status  string          `json:"status"`
		Booking json.RawMessage `json:"booking"`
	}
	if err := env.Decode(&resp); err != nil {
		return domain.Booking{}, err
	}

	body := resp.Booking
	if len(body) == 0 || string(body) == "null" {
		body = env.Data
	}
	var dto bookingDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.Booking{}, fmt.Errorf("decoding booking: %w", err)
	}
	if resp.Status != "" {
		dto.Status = resp.Status
	}
	if dto.ID == "" {
		dto.ID = flexNumber(fmt.Sprint(id))
	}
	return dto.toDomain()
}

// ListBookings returns the caller's bookings, newest first as the server
// orders them.
func (c *Client) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	env := c.Do(ctx, http.MethodGet, "/bookings/", nil)
	if err := env.Err(); err != nil {
		return nil, err
	}
	var resp struct {
		Bookings []bookingDTO `json:"bookings"`
		Items    []bookingDTO `json:"items"`
	}
	if err := env.Decode(&resp); err != nil {
		return nil, err
	}
	items := resp.Bookings
	if items == nil {
		items = resp.Items
	}
	return convertAll(items, bookingDTO.toDomain)
}
