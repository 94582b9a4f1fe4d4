package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() WatcherConfig {
	return WatcherConfig{
		GracePeriod:    time.Minute,
		PollInterval:   time.Hour,
		TickInterval:   10 * time.Millisecond,
		StopOnTerminal: true,
	}
}

func TestWatcher_FailedPollKeepsState(t *testing.T) {
	clock := newFakeClock(t0)
	fetcher := &MockFetcher{}
	fetcher.On("GetBooking", mock.Anything, int64(5)).Return(domain.Booking{}, errors.New("network error")).Once()

	w := NewWatcher(5, fetcher, testConfig(), WithSeed(pendingBooking(5, t0)), WithClock(clock.Now))
	defer w.Close()

	require.NoError(t, w.Refresh())

	snap := w.Snapshot()
	assert.True(t, snap.Loaded)
	assert.Equal(t, domain.BookingStatusPending, snap.Status)
	assert.Equal(t, domain.PhasePendingActive, snap.Phase)
	assert.Equal(t, "network error", snap.LastError)
	fetcher.AssertExpectations(t)
}

func TestWatcher_SuccessfulPollOverwritesAndStopsCountdown(t *testing.T) {
	fetcher := &MockFetcher{}
	approved := withStatus(pendingBooking(5, time.Now()), domain.BookingStatusApproved)
	approved.TotalPrice = 249900
	fetcher.On("GetBooking", mock.Anything, int64(5)).Return(approved, nil)

	w := NewWatcher(5, fetcher, testConfig(), WithSeed(pendingBooking(5, time.Now())))
	defer w.Close()

	require.True(t, w.Snapshot().Loaded)
	require.NoError(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool {
		s := w.Snapshot()
		return s.Status == domain.BookingStatusApproved && !s.Ticking
	}, time.Second, 10*time.Millisecond)

	snap := w.Snapshot()
	assert.Equal(t, domain.PhaseApproved, snap.Phase)
	assert.Equal(t, domain.Money(249900), snap.Booking.TotalPrice)
	assert.True(t, snap.Polling)
	assert.Empty(t, snap.LastError)
}

func TestWatcher_ExpiryScenario(t *testing.T) {
	clock := newFakeClock(t0)
	fetcher := &MockFetcher{}
	fetcher.On("GetBooking", mock.Anything, int64(9)).
		Return(withStatus(pendingBooking(9, t0), domain.BookingStatusCancelled), nil).Once()

	w := NewWatcher(9, fetcher, testConfig(), WithSeed(pendingBooking(9, t0)), WithClock(clock.Now))
	defer w.Close()

	clock.Set(t0.Add(59 * time.Second))
	snap := w.Snapshot()
	assert.Equal(t, domain.PhasePendingActive, snap.Phase)
	assert.Equal(t, int64(1), snap.RemainingSeconds)

	clock.Set(t0.Add(60 * time.Second))
	snap = w.Snapshot()
	assert.Equal(t, domain.PhasePendingExpiredLocal, snap.Phase)
	assert.Equal(t, int64(0), snap.RemainingSeconds)
	assert.Equal(t, domain.BookingStatusPending, snap.Status)

	clock.Set(t0.Add(65 * time.Second))
	require.NoError(t, w.Refresh())
	snap = w.Snapshot()
	assert.Equal(t, domain.PhaseCancelled, snap.Phase)
	assert.Equal(t, domain.BookingStatusCancelled, snap.Status)
	assert.False(t, snap.Polling)
}

func TestWatcher_FirstPollSeeds(t *testing.T) {
	clock := newFakeClock(t0.Add(10 * time.Second))
	fetcher := &MockFetcher{}
	fetcher.On("GetBooking", mock.Anything, int64(3)).Return(pendingBooking(3, t0), nil).Once()

	w := NewWatcher(3, fetcher, testConfig(), WithClock(clock.Now))
	defer w.Close()

	assert.False(t, w.Snapshot().Loaded)
	assert.Empty(t, w.Snapshot().Phase)

	require.NoError(t, w.Refresh())
	snap := w.Snapshot()
	assert.True(t, snap.Loaded)
	assert.Equal(t, int64(50), snap.RemainingSeconds)
	assert.Equal(t, t0.Add(time.Minute), snap.Deadline)
}

func TestWatcher_StaleResultDiscarded(t *testing.T) {
	w := NewWatcher(5, &MockFetcher{}, testConfig(), WithSeed(pendingBooking(5, t0)))
	defer w.Close()

	w.apply(2, withStatus(pendingBooking(5, t0), domain.BookingStatusApproved), nil)
	w.apply(1, pendingBooking(5, t0), nil)
	assert.Equal(t, domain.BookingStatusApproved, w.Snapshot().Status)

	w.apply(1, domain.Booking{}, errors.New("late failure"))
	assert.Empty(t, w.Snapshot().LastError)
}

func TestWatcher_TerminalKeepsPollingWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.StopOnTerminal = false
	fetcher := &MockFetcher{}
	fetcher.On("GetBooking", mock.Anything, int64(5)).
		Return(withStatus(pendingBooking(5, t0), domain.BookingStatusCancelled), nil)

	w := NewWatcher(5, fetcher, cfg, WithSeed(pendingBooking(5, t0)))
	defer w.Close()

	require.NoError(t, w.Refresh())
	require.NoError(t, w.Refresh())
	assert.True(t, w.Snapshot().Polling)
	fetcher.AssertNumberOfCalls(t, "GetBooking", 2)
}

func TestWatcher_UnexpectedTransitionAccepted(t *testing.T) {
	fetcher := &MockFetcher{}
	seed := withStatus(pendingBooking(5, t0), domain.BookingStatusApproved)
	fetcher.On("GetBooking", mock.Anything, int64(5)).Return(pendingBooking(5, t0), nil).Once()

	w := NewWatcher(5, fetcher, testConfig(), WithSeed(seed))
	defer w.Close()

	require.NoError(t, w.Refresh())
	assert.Equal(t, domain.BookingStatusPending, w.Snapshot().Status)
}

func TestWatcher_PublishesPhaseChanges(t *testing.T) {
	clock := newFakeClock(t0)
	sink := &MockSink{}
	sink.On("PublishPhase", mock.Anything, mock.MatchedBy(func(e domain.PhaseEvent) bool {
		return e.PreviousPhase == "" && e.Phase == domain.PhasePendingActive
	})).Return(nil).Once()
	sink.On("PublishPhase", mock.Anything, mock.MatchedBy(func(e domain.PhaseEvent) bool {
		return e.PreviousPhase == domain.PhasePendingActive && e.Phase == domain.PhaseApproved &&
			e.BookingID == 5 && e.Status == domain.BookingStatusApproved
	})).Return(errors.New("broker down")).Once()

	fetcher := &MockFetcher{}
	fetcher.On("GetBooking", mock.Anything, int64(5)).
		Return(withStatus(pendingBooking(5, t0), domain.BookingStatusApproved), nil)

	w := NewWatcher(5, fetcher, testConfig(), WithSeed(pendingBooking(5, t0)), WithClock(clock.Now), WithPhaseSink(sink))
	defer w.Close()

	require.NoError(t, w.Refresh())
	// same phase again, nothing published
	require.NoError(t, w.Refresh())

	assert.Equal(t, domain.PhaseApproved, w.Snapshot().Phase)
	sink.AssertExpectations(t)
}

func TestWatcher_Subscribe(t *testing.T) {
	fetcher := &MockFetcher{}
	fetcher.On("GetBooking", mock.Anything, int64(5)).
		Return(withStatus(pendingBooking(5, t0), domain.BookingStatusApproved), nil)

	w := NewWatcher(5, fetcher, testConfig(), WithSeed(pendingBooking(5, t0)))
	defer w.Close()

	var mu sync.Mutex
	var got []domain.BookingStatus
	unsubscribe := w.Subscribe(func(s Snapshot) {
		mu.Lock()
		got = append(got, s.Status)
		mu.Unlock()
	})

	require.NoError(t, w.Refresh())
	unsubscribe()
	unsubscribe()
	require.NoError(t, w.Refresh())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.BookingStatus{domain.BookingStatusApproved}, got)
}

func TestWatcher_CloseDiscardsLateResults(t *testing.T) {
	w := NewWatcher(5, &MockFetcher{}, testConfig(), WithSeed(pendingBooking(5, t0)))

	w.Close()
	w.Close()

	w.apply(10, withStatus(pendingBooking(5, t0), domain.BookingStatusApproved), nil)
	snap := w.Snapshot()
	assert.Equal(t, domain.BookingStatusPending, snap.Status)
	assert.False(t, snap.Polling)
	assert.False(t, snap.Ticking)
	assert.ErrorIs(t, w.Refresh(), scheduler.ErrStopped)
	assert.ErrorIs(t, w.Start(context.Background()), scheduler.ErrStopped)
}

func TestWatcher_TerminalSeedDoesNotPoll(t *testing.T) {
	fetcher := &MockFetcher{}
	w := NewWatcher(5, fetcher, testConfig(), WithSeed(withStatus(pendingBooking(5, t0), domain.BookingStatusCompleted)))
	defer w.Close()

	require.NoError(t, w.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	fetcher.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
	assert.Equal(t, domain.PhaseCompleted, w.Snapshot().Phase)
}

type slowFetcher struct {
	mu        sync.Mutex
	active    int
	maxActive int
	calls     int
}

func (f *slowFetcher) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	f.mu.Lock()
	f.active++
	f.calls++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return pendingBooking(id, time.Now()), nil
}

func TestWatcher_RefreshDoesNotOverlapPoll(t *testing.T) {
	fetcher := &slowFetcher{}
	w := NewWatcher(5, fetcher, testConfig())
	defer w.Close()

	require.NoError(t, w.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Refresh())
		}()
	}
	wg.Wait()

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Equal(t, 1, fetcher.maxActive)
	assert.GreaterOrEqual(t, fetcher.calls, 1)
}
