package domain

import "time"

type DisplayPhase string

const (
	PhasePendingActive       DisplayPhase = "PENDING_ACTIVE"
	PhasePendingExpiredLocal DisplayPhase = "PENDING_EXPIRED_LOCAL"
	PhaseApproved            DisplayPhase = "APPROVED"
	PhaseCancelled           DisplayPhase = "CANCELLED"
	PhaseCompleted           DisplayPhase = "COMPLETED"
)

// DerivePhase maps server status plus the local countdown to what a view
// shows. The countdown only splits PENDING; it never produces CANCELLED.
func DerivePhase(status BookingStatus, remainingSeconds int64) DisplayPhase {
	switch status {
	case BookingStatusApproved:
		return PhaseApproved
	case BookingStatusCancelled:
		return PhaseCancelled
	case BookingStatusCompleted:
		return PhaseCompleted
	}
	if remainingSeconds <= 0 {
		return PhasePendingExpiredLocal
	}
	return PhasePendingActive
}

// Deadline is when a PENDING booking is expected to expire.
func Deadline(createdAt time.Time, grace time.Duration) time.Time {
	return createdAt.Add(grace)
}

// RemainingSeconds is max(0, floor((deadline-now)/1s)).
func RemainingSeconds(deadline, now time.Time) int64 {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int64(left / time.Second)
}
