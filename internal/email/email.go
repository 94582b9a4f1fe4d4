package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
)

// Sender turns phase changes into renter notices. Delivery is a log line
// until a mail transport is configured.
type Sender struct {
	log logger.ILogger
}

func NewSender(log logger.ILogger) *Sender {
	if log == nil {
		log = logger.Nop()
	}
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event domain.PhaseEvent) error {
	subject, ok := Subject(event)
	if !ok {
		return nil
	}
	s.log.Info("send renter notice",
		logger.Int64("booking_id", event.BookingID),
		logger.String("phase", string(event.Phase)),
		logger.String("subject", subject),
	)
	return nil
}

// Subject is the notice line for a phase, false when the phase is not
// worth telling the renter about.
func Subject(event domain.PhaseEvent) (string, bool) {
	switch event.Phase {
	case domain.PhaseApproved:
		return fmt.Sprintf("Booking #%d approved", event.BookingID), true
	case domain.PhaseCancelled:
		return fmt.Sprintf("Booking #%d cancelled", event.BookingID), true
	case domain.PhaseCompleted:
		return fmt.Sprintf("Booking #%d completed, thanks for riding", event.BookingID), true
	case domain.PhasePendingExpiredLocal:
		return fmt.Sprintf("Booking #%d hold ran out, awaiting confirmation", event.BookingID), true
	default:
		return "", false
	}
}
