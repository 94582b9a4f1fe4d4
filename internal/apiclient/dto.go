package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
)

// flexNumber holds a JSON number or a numeric string; the server
// serialises decimals as strings.
type flexNumber string

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	*f = flexNumber(n.String())
	return nil
}

func (f flexNumber) Money() (domain.Money, error) {
	return domain.ParseMoney(string(f))
}

func (f flexNumber) Float() (float64, error) {
	if f == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(f), 64)
}

func (f flexNumber) Int64() (int64, error) {
	if f == "" {
		return 0, nil
	}
	return strconv.ParseInt(string(f), 10, 64)
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseServerTime(s)
}

type carDTO struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Brand          string     `json:"brand"`
	Slug           string     `json:"slug"`
	NumberPlate    string     `json:"number_plate"`
	Transmission   string     `json:"transmission"`
	FuelType       string     `json:"fuel_type"`
	Seats          int        `json:"seats"`
	Doors          int        `json:"doors"`
	Quantity       int        `json:"quantity"`
	DailyRate      flexNumber `json:"daily_rate"`
	TwelveHourRate flexNumber `json:"twelve_hour_rate"`
	Price          flexNumber `json:"price"`
	Status         string     `json:"status"`
	Image          string     `json:"image"`
	IsFeatured     bool       `json:"is_featured"`
	CreatedAt      string     `json:"created_at"`
}

func (d carDTO) toDomain() (domain.Car, error) {
	rate := d.DailyRate
	if rate == "" {
		// public listing exposes the daily rate as "price"
		rate = d.Price
	}
	daily, err := rate.Money()
	if err != nil {
		return domain.Car{}, fmt.Errorf("car %d daily_rate: %w", d.ID, err)
	}
	twelve, err := d.TwelveHourRate.Money()
	if err != nil {
		return domain.Car{}, fmt.Errorf("car %d twelve_hour_rate: %w", d.ID, err)
	}
	created, err := parseOptionalTime(d.CreatedAt)
	if err != nil {
		return domain.Car{}, fmt.Errorf("car %d created_at: %w", d.ID, err)
	}
	return domain.Car{
		ID:             d.ID,
		Name:           d.Name,
		Brand:          d.Brand,
		Slug:           d.Slug,
		NumberPlate:    d.NumberPlate,
		Transmission:   d.Transmission,
		FuelType:       d.FuelType,
		Seats:          d.Seats,
		Doors:          d.Doors,
		Quantity:       d.Quantity,
		DailyRate:      daily,
		TwelveHourRate: twelve,
		Status:         d.Status,
		Image:          d.Image,
		IsFeatured:     d.IsFeatured,
		CreatedAt:      created,
	}, nil
}

type bookingDTO struct {
	ID         flexNumber `json:"id"`
	UserID     int64      `json:"user_id"`
	CarID      int64      `json:"car_id"`
	CouponID   *int64     `json:"coupon_id"`
	Status     string     `json:"status"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	TotalPrice flexNumber `json:"total_price"`
	CreatedAt  string     `json:"created_at"`
	Car        *carDTO    `json:"car"`
}

func (d bookingDTO) toDomain() (domain.Booking, error) {
	id, err := d.ID.Int64()
	if err != nil {
		return domain.Booking{}, fmt.Errorf("booking id: %w", err)
	}
	status, err := domain.ParseBookingStatus(d.Status)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("booking %d: %w", id, err)
	}
	b := domain.Booking{
		ID:       id,
		UserID:   d.UserID,
		CarID:    d.CarID,
		CouponID: d.CouponID,
		Status:   status,
	}
	if b.TotalPrice, err = d.TotalPrice.Money(); err != nil {
		return domain.Booking{}, fmt.Errorf("booking %d total_price: %w", id, err)
	}
	if b.StartTime, err = parseOptionalTime(d.StartTime); err != nil {
		return domain.Booking{}, fmt.Errorf("booking %d start_time: %w", id, err)
	}
	if b.EndTime, err = parseOptionalTime(d.EndTime); err != nil {
		return domain.Booking{}, fmt.Errorf("booking %d end_time: %w", id, err)
	}
	if b.CreatedAt, err = parseOptionalTime(d.CreatedAt); err != nil {
		return domain.Booking{}, fmt.Errorf("booking %d created_at: %w", id, err)
	}
	if d.Car != nil {
		car, err := d.Car.toDomain()
		if err != nil {
			return domain.Booking{}, err
		}
		b.Car = &car
		if b.CarID == 0 {
			b.CarID = car.ID
		}
	}
	return b, nil
}

type couponDTO struct {
	ID                 int64      `json:"id"`
	Code               string     `json:"code"`
	DiscountPercentage flexNumber `json:"discount_percentage"`
	Discount           flexNumber `json:"discount"`
	ValidFrom          string     `json:"valid_from"`
	ValidTo            string     `json:"valid_to"`
	Expiry             string     `json:"expiry"`
	UsageLimit         int        `json:"usage_limit"`
	UsageCount         int        `json:"usage_count"`
	Active             *bool      `json:"active"`
}

func (d couponDTO) toDomain() (domain.Coupon, error) {
	pct := d.DiscountPercentage
	if pct == "" {
		pct = d.Discount
	}
	discount, err := pct.Float()
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("coupon %q discount: %w", d.Code, err)
	}
	validTo := d.ValidTo
	if validTo == "" {
		validTo = d.Expiry
	}
	c := domain.Coupon{
		ID:                 d.ID,
		Code:               d.Code,
		DiscountPercentage: discount,
		UsageLimit:         d.UsageLimit,
		UsageCount:         d.UsageCount,
		Active:             d.Active == nil || *d.Active,
	}
	if c.ValidFrom, err = parseOptionalTime(d.ValidFrom); err != nil {
		return domain.Coupon{}, fmt.Errorf("coupon %q valid_from: %w", d.Code, err)
	}
	if c.ValidTo, err = parseOptionalTime(validTo); err != nil {
		return domain.Coupon{}, fmt.Errorf("coupon %q valid_to: %w", d.Code, err)
	}
	return c, nil
}

type userDTO struct {
	ID            flexNumber `json:"id"`
	Username      string     `json:"username"`
	IsAdmin       bool       `json:"is_admin"`
	CreatedAt     string     `json:"created_at"`
	TotalBookings int        `json:"total_bookings"`
}

func (d userDTO) toDomain() (domain.User, error) {
	id, err := d.ID.Int64()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id: %w", err)
	}
	created, err := parseOptionalTime(d.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %d created_at: %w", id, err)
	}
	return domain.User{ID: id, Username: d.Username, IsAdmin: d.IsAdmin, CreatedAt: created}, nil
}

type notificationDTO struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	BookingID *int64 `json:"booking_id"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

func (d notificationDTO) toDomain() (domain.Notification, error) {
	created, err := parseOptionalTime(d.CreatedAt)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("notification %d created_at: %w", d.ID, err)
	}
	return domain.Notification{
		ID:        d.ID,
		UserID:    d.UserID,
		BookingID: d.BookingID,
		Message:   d.Message,
		IsRead:    d.IsRead,
		CreatedAt: created,
	}, nil
}

// convertAll maps a decoded DTO slice to domain values, failing on the
// first bad item.
func convertAll[D any, T any](items []D, conv func(D) (T, error)) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := conv(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// extractBookingID finds the created booking id in a create response. The
// server has shipped several shapes over time; the first match wins.
func extractBookingID(raw json.RawMessage) (int64, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return 0, false
	}
	if id, ok := positiveID(top["id"]); ok {
		return id, true
	}
	for _, key := range []string{"booking", "data"} {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(top[key], &nested); err == nil {
			if id, ok := positiveID(nested["id"]); ok {
				return id, true
			}
		}
	}
	return positiveID(top["booking_id"])
}

func positiveID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f flexNumber
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	id, err := f.Int64()
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
