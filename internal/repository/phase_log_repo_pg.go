package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the part of *pgxpool.Pool the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PhaseRecord is one stored phase change.
type PhaseRecord struct {
	ID         int64
	Event      domain.PhaseEvent
	RecordedAt time.Time
}

type PhaseLogRepository interface {
	// Record stores event once; a redelivered event id is ignored and
	// reported as not inserted.
	Record(ctx context.Context, event domain.PhaseEvent) (bool, error)
	// ListByBooking returns the newest records first.
	ListByBooking(ctx context.Context, bookingID int64, limit int) ([]PhaseRecord, error)
	LatestPhase(ctx context.Context, bookingID int64) (*PhaseRecord, error)
}

type PGPhaseLogRepository struct {
	db DBTX
}

func NewPhaseLogRepository(db DBTX) PhaseLogRepository {
	return &PGPhaseLogRepository{db: db}
}

const phaseColumns = `id, event_id, booking_id, previous_phase, phase, status, remaining_seconds, observed_at, recorded_at`

func (r *PGPhaseLogRepository) Record(ctx context.Context, event domain.PhaseEvent) (bool, error) {
	cmd, err := r.db.Exec(ctx, `INSERT INTO booking_phase_log
		(event_id, booking_id, previous_phase, phase, status, remaining_seconds, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.BookingID, string(event.PreviousPhase), string(event.Phase),
		string(event.Status), event.RemainingSeconds, event.ObservedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGPhaseLogRepository) ListByBooking(ctx context.Context, bookingID int64, limit int) ([]PhaseRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+phaseColumns+` FROM booking_phase_log
		WHERE booking_id=$1 ORDER BY observed_at DESC, id DESC LIMIT $2`, bookingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PhaseRecord, 0)
	for rows.Next() {
		rec, err := scanPhaseRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestPhase returns a NotFoundError when the booking has no history.
func (r *PGPhaseLogRepository) LatestPhase(ctx context.Context, bookingID int64) (*PhaseRecord, error) {
	records, err := r.ListByBooking(ctx, bookingID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.NotFoundError{Resource: "phase history"}
	}
	return &records[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhaseRecord(row rowScanner) (PhaseRecord, error) {
	var (
		rec                 PhaseRecord
		prev, phase, status string
	)
	if err := row.Scan(&rec.ID, &rec.Event.EventID, &rec.Event.BookingID, &prev, &phase, &status,
		&rec.Event.RemainingSeconds, &rec.Event.ObservedAt, &rec.RecordedAt); err != nil {
		return PhaseRecord{}, err
	}
	rec.Event.PreviousPhase = domain.DisplayPhase(prev)
	rec.Event.Phase = domain.DisplayPhase(phase)
	rec.Event.Status = domain.BookingStatus(status)
	return rec, nil
}

var _ PhaseLogRepository = (*PGPhaseLogRepository)(nil)
