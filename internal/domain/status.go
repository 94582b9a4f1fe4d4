package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned for status strings the client does not model.
var ErrUnknownStatus = errors.New("unknown booking status")

// ParseBookingStatus accepts the server's status strings. CONFIRMED is an
// older spelling of APPROVED and is folded into it.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return BookingStatusPending, nil
	case "APPROVED", "CONFIRMED":
		return BookingStatusApproved, nil
	case "CANCELLED", "CANCELED":
		return BookingStatusCancelled, nil
	case "COMPLETED":
		return BookingStatusCompleted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

var transitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:  {BookingStatusApproved, BookingStatusCancelled},
	BookingStatusApproved: {BookingStatusCompleted},
}

// CanTransition reports whether the lifecycle permits from -> to.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusApproved, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}
