package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
)

// AdminUser is a user row from the admin listing.
type AdminUser struct {
	domain.User
	TotalBookings int
}

func (c *Client) ListAllBookings(ctx context.Context) ([]domain.Booking, error) {
	var items []bookingDTO
	if err := c.getItems(ctx, "/admin/bookings", &items); err != nil {
		return nil, err
	}
	return convertAll(items, bookingDTO.toDomain)
}

// UpdateBookingStatus asks the server to move a booking. Transitions the
// lifecycle forbids are rejected locally without a request.
func (c *Client) UpdateBookingStatus(ctx context.Context, id int64, from, to domain.BookingStatus) (domain.Booking, error) {
	if !domain.CanTransition(from, to) {
		return domain.Booking{}, domain.TransitionError{From: from, To: to}
	}
	env := c.Do(ctx, http.MethodPatch, fmt.Sprintf("/admin/bookings/%d", id), map[string]string{"status": string(to)})
	if err := env.Err(); err != nil {
		return domain.Booking{}, err
	}
	var resp struct {
		Booking *bookingDTO `json:"booking"`
	}
	if err := env.Decode(&resp); err != nil {
		return domain.Booking{}, err
	}
	if resp.Booking == nil {
		return domain.Booking{ID: id, Status: to}, nil
	}
	return resp.Booking.toDomain()
}

func (c *Client) DeleteBooking(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/admin/bookings/%d", id), nil).Err()
}

func (c *Client) ListUsers(ctx context.Context) ([]AdminUser, error) {
	var items []userDTO
	if err := c.getItems(ctx, "/admin/users", &items); err != nil {
		return nil, err
	}
	return convertAll(items, func(d userDTO) (AdminUser, error) {
		u, err := d.toDomain()
		return AdminUser{User: u, TotalBookings: d.TotalBookings}, err
	})
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/admin/users/%d", id), nil).Err()
}

func (c *Client) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	var items []couponDTO
	if err := c.getItems(ctx, "/admin/coupons", &items); err != nil {
		return nil, err
	}
	return convertAll(items, couponDTO.toDomain)
}

type CouponInput struct {
	Code               string
	DiscountPercentage float64
	ValidFrom          time.Time
	ValidTo            time.Time
	UsageLimit         int
}

func (in CouponInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return domain.ValidationError{Field: "code", Msg: "is required"}
	}
	if in.DiscountPercentage <= 0 || in.DiscountPercentage > 100 {
		return domain.ValidationError{Field: "discount_percentage", Msg: "must be in (0, 100]"}
	}
	if !in.ValidTo.After(in.ValidFrom) {
		return domain.ValidationError{Field: "valid_to", Msg: "must be after valid_from"}
	}
	return nil
}

func (c *Client) CreateCoupon(ctx context.Context, in CouponInput) (domain.Coupon, error) {
	if err := in.Validate(); err != nil {
		return domain.Coupon{}, err
	}
	limit := in.UsageLimit
	if limit <= 0 {
		limit = 10
	}
	env := c.Do(ctx, http.MethodPost, "/admin/coupons", map[string]any{
		"code":                strings.TrimSpace(in.Code),
		"discount_percentage": in.DiscountPercentage,
		"valid_from":          domain.FormatServerTime(in.ValidFrom),
		"valid_to":            domain.FormatServerTime(in.ValidTo),
		"usage_limit":         limit,
	})
	if err := env.Err(); err != nil {
		return domain.Coupon{}, err
	}
	var resp struct {
		Coupon *couponDTO `json:"coupon"`
	}
	if err := env.Decode(&resp); err != nil {
		return domain.Coupon{}, err
	}
	if resp.Coupon == nil {
		return domain.Coupon{}, fmt.Errorf("create coupon response has no coupon")
	}
	return resp.Coupon.toDomain()
}

func (c *Client) DeleteCoupon(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/admin/coupons/%d", id), nil).Err()
}

func (c *Client) ListAdminCars(ctx context.Context) ([]domain.Car, error) {
	var items []carDTO
	if err := c.getItems(ctx, "/admin/cars", &items); err != nil {
		return nil, err
	}
	return convertAll(items, carDTO.toDomain)
}

func (c *Client) UpdateCarStatus(ctx context.Context, id int64, status string) error {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return domain.ValidationError{Field: "status", Msg: "is required"}
	}
	return c.Do(ctx, http.MethodPatch, fmt.Sprintf("/admin/cars/%d", id), map[string]string{"status": status}).Err()
}
