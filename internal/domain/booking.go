package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusApproved  BookingStatus = "APPROVED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// Booking is the client's cached copy of a server-owned booking.
type Booking struct {
	ID         int64
	UserID     int64
	CarID      int64
	CouponID   *int64
	Status     BookingStatus
	StartTime  time.Time
	EndTime    time.Time
	TotalPrice Money
	Car        *Car
	CreatedAt  time.Time
}

// CreateBookingInput is what the renter submits; the server assigns the id.
type CreateBookingInput struct {
	CarID      int64
	StartTime  time.Time
	EndTime    time.Time
	CouponCode string
}

// Validate catches the mistakes the server would reject anyway; everything
// else (availability, coupon validity, duration rules) stays server-side.
func (in CreateBookingInput) Validate() error {
	if in.CarID <= 0 {
		return ValidationError{Field: "car_id", Msg: "must be positive"}
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return ValidationError{Field: "start_time", Msg: "start and end time are required"}
	}
	if !in.EndTime.After(in.StartTime) {
		return ValidationError{Field: "end_time", Msg: "end time must be after start time"}
	}
	return nil
}
