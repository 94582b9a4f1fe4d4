package domain

import (
	"time"

	"github.com/google/uuid"
)

// PhaseEvent records one observed change of a booking's display phase.
type PhaseEvent struct {
	EventID          string        `json:"event_id"`
	BookingID        int64         `json:"booking_id"`
	PreviousPhase    DisplayPhase  `json:"previous_phase,omitempty"`
	Phase            DisplayPhase  `json:"phase"`
	Status           BookingStatus `json:"status"`
	RemainingSeconds int64         `json:"remaining_seconds"`
	ObservedAt       time.Time     `json:"observed_at"`
}

func NewPhaseEvent(bookingID int64, prev, next DisplayPhase, status BookingStatus, remaining int64, at time.Time) PhaseEvent {
	return PhaseEvent{
		EventID:          uuid.NewString(),
		BookingID:        bookingID,
		PreviousPhase:    prev,
		Phase:            next,
		Status:           status,
		RemainingSeconds: remaining,
		ObservedAt:       at.UTC(),
	}
}
