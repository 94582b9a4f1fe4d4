package booking

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Booking), args.Error(1)
}

type MockLister struct {
	mock.Mock
}

func (m *MockLister) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) PublishPhase(ctx context.Context, event domain.PhaseEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func pendingBooking(id int64, createdAt time.Time) domain.Booking {
	return domain.Booking{ID: id, CarID: 4, Status: domain.BookingStatusPending, CreatedAt: createdAt}
}

func withStatus(b domain.Booking, status domain.BookingStatus) domain.Booking {
	b.Status = status
	return b
}
