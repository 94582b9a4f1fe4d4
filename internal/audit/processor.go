// Package audit stores observed phase changes and decides which of them
// reach the renter.
package audit

import (
	"context"
	"fmt"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/Domenick1991/rentalwatch/internal/repository"
)

type Notifier interface {
	Send(ctx context.Context, event domain.PhaseEvent) error
}

type Processor struct {
	repo     repository.PhaseLogRepository
	notifier Notifier
	log      logger.ILogger
}

func NewProcessor(repo repository.PhaseLogRepository, notifier Notifier, log logger.ILogger) *Processor {
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{repo: repo, notifier: notifier, log: log}
}

// Handle records event and notifies once per real phase change. A
// redelivered event, or a watcher restart re-reporting the phase already
// on record, is stored at most once and never notified twice.
func (p *Processor) Handle(ctx context.Context, event domain.PhaseEvent) error {
	latest, err := p.repo.LatestPhase(ctx, event.BookingID)
	if err != nil && !domain.IsNotFound(err) {
		return fmt.Errorf("latest phase of booking %d: %w", event.BookingID, err)
	}

	inserted, err := p.repo.Record(ctx, event)
	if err != nil {
		return fmt.Errorf("record phase event %s: %w", event.EventID, err)
	}
	if !inserted {
		p.log.Debug("duplicate phase event", logger.String("event_id", event.EventID))
		return nil
	}
	if latest != nil && latest.Event.Phase == event.Phase {
		p.log.Debug("phase already on record",
			logger.Int64("booking_id", event.BookingID),
			logger.String("phase", string(event.Phase)),
		)
		return nil
	}
	if p.notifier == nil {
		return nil
	}
	return p.notifier.Send(ctx, event)
}

// History returns the stored phase changes of a booking, newest first.
func (p *Processor) History(ctx context.Context, bookingID int64, limit int) ([]repository.PhaseRecord, error) {
	if bookingID <= 0 {
		return nil, domain.ValidationError{Field: "booking_id", Msg: "must be positive"}
	}
	return p.repo.ListByBooking(ctx, bookingID, limit)
}
