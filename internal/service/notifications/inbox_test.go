package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *MockAPI) MarkNotificationRead(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type authFlag bool

func (a authFlag) Authenticated() bool { return bool(a) }

func sampleItems() []domain.Notification {
	return []domain.Notification{
		{ID: 1, Message: "Booking #55 request received."},
		{ID: 2, Message: "Booking #55 approved."},
		{ID: 3, Message: "Welcome", IsRead: true},
	}
}

func loadedInbox(t *testing.T, api *MockAPI) *Inbox {
	t.Helper()
	api.On("ListNotifications", mock.Anything).Return(sampleItems(), nil).Once()
	inbox := NewInbox(api, authFlag(true), time.Hour)
	t.Cleanup(inbox.Close)
	require.NoError(t, inbox.Refresh())
	require.Equal(t, 2, inbox.UnreadCount())
	return inbox
}

func TestInbox_MarkRead(t *testing.T) {
	api := &MockAPI{}
	inbox := loadedInbox(t, api)
	api.On("MarkNotificationRead", mock.Anything, int64(1)).Return(nil).Once()

	require.NoError(t, inbox.MarkRead(context.Background(), 1))
	assert.Equal(t, 1, inbox.UnreadCount())
	assert.True(t, inbox.State().Items[0].IsRead)

	// already read: no request, no change
	require.NoError(t, inbox.MarkRead(context.Background(), 1))
	require.NoError(t, inbox.MarkRead(context.Background(), 3))
	assert.Equal(t, 1, inbox.UnreadCount())
	api.AssertExpectations(t)
}

func TestInbox_MarkReadConcurrentSameItem(t *testing.T) {
	api := &MockAPI{}
	inbox := loadedInbox(t, api)

	release := make(chan struct{})
	api.On("MarkNotificationRead", mock.Anything, int64(2)).
		Run(func(mock.Arguments) { <-release }).
		Return(nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, inbox.MarkRead(context.Background(), 2))
	}()

	assert.Eventually(t, func() bool { return inbox.UnreadCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, inbox.MarkRead(context.Background(), 2))
	assert.Equal(t, 1, inbox.UnreadCount())

	close(release)
	wg.Wait()
	assert.Equal(t, 1, inbox.UnreadCount())
	api.AssertNumberOfCalls(t, "MarkNotificationRead", 1)
}

func TestInbox_MarkReadRevertsOnFailure(t *testing.T) {
	api := &MockAPI{}
	inbox := loadedInbox(t, api)
	api.On("MarkNotificationRead", mock.Anything, int64(1)).Return(errors.New("network error")).Once()

	err := inbox.MarkRead(context.Background(), 1)
	assert.EqualError(t, err, "network error")
	assert.Equal(t, 2, inbox.UnreadCount())
	assert.False(t, inbox.State().Items[0].IsRead)
}

func TestInbox_MarkReadUnknown(t *testing.T) {
	api := &MockAPI{}
	inbox := loadedInbox(t, api)
	assert.ErrorIs(t, inbox.MarkRead(context.Background(), 99), ErrNotFound)
}

func TestInbox_UnreadClampedAtZero(t *testing.T) {
	inbox := NewInbox(&MockAPI{}, nil, time.Hour)
	defer inbox.Close()

	// counter already at zero while an item still shows unread
	inbox.items = []domain.Notification{{ID: 1}}
	inbox.unread = 0

	api := inbox.api.(*MockAPI)
	api.On("MarkNotificationRead", mock.Anything, int64(1)).Return(nil).Once()
	require.NoError(t, inbox.MarkRead(context.Background(), 1))
	assert.Equal(t, 0, inbox.UnreadCount())
}

func TestInbox_RefreshFailureKeepsItems(t *testing.T) {
	api := &MockAPI{}
	inbox := loadedInbox(t, api)
	api.On("ListNotifications", mock.Anything).Return(nil, errors.New("boom")).Once()

	require.NoError(t, inbox.Refresh())
	state := inbox.State()
	assert.Len(t, state.Items, 3)
	assert.Equal(t, 2, state.UnreadCount)
	assert.Equal(t, "boom", state.LastError)
}

func TestInbox_PendingMarkSurvivesRefresh(t *testing.T) {
	api := &MockAPI{}
	inbox := loadedInbox(t, api)

	release := make(chan struct{})
	api.On("MarkNotificationRead", mock.Anything, int64(1)).
		Run(func(mock.Arguments) { <-release }).
		Return(nil).Once()
	api.On("ListNotifications", mock.Anything).Return(sampleItems(), nil).Once()

	done := make(chan error, 1)
	go func() { done <- inbox.MarkRead(context.Background(), 1) }()
	assert.Eventually(t, func() bool { return inbox.UnreadCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, inbox.Refresh())
	assert.Equal(t, 1, inbox.UnreadCount())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, inbox.UnreadCount())
}

func TestInbox_SkipsPollWhenLoggedOut(t *testing.T) {
	api := &MockAPI{}
	inbox := NewInbox(api, authFlag(false), time.Hour)
	defer inbox.Close()

	require.NoError(t, inbox.Refresh())
	api.AssertNotCalled(t, "ListNotifications", mock.Anything)
	assert.False(t, inbox.State().Loaded)
}

type switchAuth struct {
	mu sync.Mutex
	on bool
}

func (a *switchAuth) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

func (a *switchAuth) set(on bool) {
	a.mu.Lock()
	a.on = on
	a.mu.Unlock()
}

func TestInbox_LogoutClearsState(t *testing.T) {
	api := &MockAPI{}
	auth := &switchAuth{on: true}
	api.On("ListNotifications", mock.Anything).Return(sampleItems(), nil).Once()
	inbox := NewInbox(api, auth, time.Hour)
	defer inbox.Close()

	require.NoError(t, inbox.Refresh())
	require.Equal(t, 2, inbox.UnreadCount())

	auth.set(false)
	require.NoError(t, inbox.Refresh())

	state := inbox.State()
	assert.Empty(t, state.Items)
	assert.Equal(t, 0, state.UnreadCount)
	assert.False(t, state.Loaded)
	api.AssertNumberOfCalls(t, "ListNotifications", 1)
}

func TestInbox_ResetDropsFetchInFlight(t *testing.T) {
	api := &MockAPI{}
	started := make(chan struct{})
	release := make(chan struct{})
	api.On("ListNotifications", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(sampleItems(), nil).Once()
	inbox := NewInbox(api, authFlag(true), time.Hour)
	defer inbox.Close()

	done := make(chan error, 1)
	go func() { done <- inbox.Refresh() }()

	<-started
	inbox.Reset()
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, inbox.State().Items)
	assert.Equal(t, 0, inbox.UnreadCount())
}

func TestInbox_ResetOnLogout(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore()
	require.NoError(t, store.Login(ctx, "opaque-token", domain.User{ID: 7, Username: "asha"}))

	api := &MockAPI{}
	api.On("ListNotifications", mock.Anything).Return(sampleItems(), nil).Once()
	inbox := NewInbox(api, store, time.Hour)
	defer inbox.Close()
	unsubscribe := inbox.ResetOnLogout(store)
	defer unsubscribe()

	require.NoError(t, inbox.Refresh())
	require.Len(t, inbox.State().Items, 3)

	store.Logout(ctx)

	state := inbox.State()
	assert.Empty(t, state.Items)
	assert.Equal(t, 0, state.UnreadCount)
	assert.False(t, state.Loaded)
}
