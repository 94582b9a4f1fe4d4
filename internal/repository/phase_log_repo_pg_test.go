package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhaseLogRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewPhaseLogRepository(pool)
	assert.NotNil(t, repo)
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanPhaseRecord(t *testing.T) {
	observed := time.Date(2025, 3, 1, 10, 1, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		int64(1), "5c1f8a4e-6f57-4a43-9a51-8d1b1c7f2e10", int64(55), "PENDING_ACTIVE", "PENDING_EXPIRED_LOCAL",
		"PENDING", int64(0), observed, observed.Add(time.Second),
	}}

	rec, err := scanPhaseRecord(row)
	require.NoError(t, err)
	assert.Equal(t, int64(55), rec.Event.BookingID)
	assert.Equal(t, domain.PhasePendingActive, rec.Event.PreviousPhase)
	assert.Equal(t, domain.PhasePendingExpiredLocal, rec.Event.Phase)
	assert.Equal(t, domain.BookingStatusPending, rec.Event.Status)
	assert.Equal(t, observed, rec.Event.ObservedAt)

	_, err = scanPhaseRecord(fakeRow{err: errors.New("no rows")})
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

type fakeDB struct {
	rows     [][]any
	queryErr error
	tag      string
	sql      string
	args     []any
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag(f.tag), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql, f.args = sql, args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

type fakeRows struct {
	rows   [][]any
	idx    int
	closed bool
}

func (r *fakeRows) Close() { r.closed = true }
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error) { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte { return nil }
func (r *fakeRows) Conn() *pgx.Conn { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return fakeRow{values: r.rows[r.idx]}.Scan(dest...)
}

func phaseRow(id int64, phase string, observed time.Time) []any {
	return []any{id, "event-" + phase, int64(55), "", phase, "PENDING", int64(0), observed, observed}
}

func TestPhaseLogRepository_Record(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 1"}
	repo := NewPhaseLogRepository(db)
	event := domain.NewPhaseEvent(55, "", domain.PhasePendingActive, domain.BookingStatusPending, 300, time.Now())

	inserted, err := repo.Record(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Contains(t, db.sql, "ON CONFLICT (event_id) DO NOTHING")
	assert.Equal(t, event.EventID, db.args[0])

	db.tag = "INSERT 0 0"
	inserted, err = repo.Record(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestPhaseLogRepository_ListByBooking(t *testing.T) {
	observed := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		phaseRow(2, "PENDING_EXPIRED_LOCAL", observed),
		phaseRow(1, "PENDING_ACTIVE", observed.Add(-5*time.Minute)),
	}}
	repo := NewPhaseLogRepository(db)

	records, err := repo.ListByBooking(context.Background(), 55, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.PhasePendingExpiredLocal, records[0].Event.Phase)
	assert.Equal(t, []any{int64(55), 100}, db.args)

	_, err = repo.ListByBooking(context.Background(), 55, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, db.args[1])
}

func TestPhaseLogRepository_LatestPhase(t *testing.T) {
	observed := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{phaseRow(2, "APPROVED", observed)}}
	repo := NewPhaseLogRepository(db)

	latest, err := repo.LatestPhase(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseApproved, latest.Event.Phase)
	assert.Equal(t, 1, db.args[1])

	db.rows = nil
	_, err = repo.LatestPhase(context.Background(), 55)
	assert.True(t, domain.IsNotFound(err))

	db.queryErr = errors.New("connection refused")
	_, err = repo.LatestPhase(context.Background(), 55)
	assert.EqualError(t, err, "connection refused")
}
