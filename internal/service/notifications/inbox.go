// Package notifications keeps the renter's inbox in sync and applies
// mark-read optimistically.
package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/Domenick1991/rentalwatch/internal/scheduler"
	"github.com/Domenick1991/rentalwatch/internal/session"
)

var ErrNotFound = errors.New("notification not in inbox")

type API interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Auth reports whether polling should run at all.
type Auth interface {
	Authenticated() bool
}

type State struct {
	Items       []domain.Notification
	UnreadCount int
	Loaded      bool
	LastError   string
	UpdatedAt   time.Time
}

type Inbox struct {
	api    API
	auth   Auth
	log    logger.ILogger
	now    func() time.Time
	poller *scheduler.Poller

	mu        sync.Mutex
	items     []domain.Notification
	unread    int
	pending   map[int64]bool
	loaded    bool
	lastSeq   uint64
	gen       uint64
	lastErr   error
	updatedAt time.Time
	closed    bool
	closeOnce sync.Once
}

type Option func(*Inbox)

func WithLogger(log logger.ILogger) Option {
	return func(i *Inbox) { i.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(i *Inbox) { i.now = now }
}

func NewInbox(api API, auth Auth, interval time.Duration, opts ...Option) *Inbox {
	i := &Inbox{
		api:     api,
		auth:    auth,
		log:     logger.Nop(),
		now:     time.Now,
		pending: make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.log = i.log.With(logger.String("view", "notifications"))
	i.poller = scheduler.New("notifications", interval, i.poll, i.log)
	return i
}

func (i *Inbox) Start(ctx context.Context) error {
	return i.poller.Start(ctx)
}

// Refresh fetches the inbox now.
func (i *Inbox) Refresh() error {
	return i.poller.Trigger()
}

func (i *Inbox) poll(ctx context.Context, seq uint64) {
	if i.auth != nil && !i.auth.Authenticated() {
		i.Reset()
		return
	}
	i.mu.Lock()
	gen := i.gen
	i.mu.Unlock()
	items, err := i.api.ListNotifications(ctx)
	i.apply(seq, gen, items, err)
}

// Reset drops everything the inbox holds. It runs on logout so nothing of
// the previous user stays visible; fetches already in flight are discarded.
func (i *Inbox) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.gen++
	i.items = nil
	i.unread = 0
	i.loaded = false
	i.lastErr = nil
	i.updatedAt = i.now()
	i.pending = make(map[int64]bool)
}

// Sessions is the part of the session store the inbox listens to.
type Sessions interface {
	Subscribe(fn func(session.Session)) func()
}

// ResetOnLogout clears the inbox whenever sessions reports a logout,
// including the one forced by a 401. The returned func unsubscribes.
func (i *Inbox) ResetOnLogout(sessions Sessions) func() {
	return sessions.Subscribe(func(s session.Session) {
		if !s.Authenticated() {
			i.Reset()
		}
	})
}

func (i *Inbox) apply(seq, gen uint64, items []domain.Notification, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed || seq < i.lastSeq || gen != i.gen {
		return
	}
	if err != nil {
		i.lastErr = err
		i.log.Warning("notifications poll failed", logger.Uint64("seq", seq), logger.Error(err))
		return
	}

	// a mark-read still in flight wins over the fetched copy
	for idx := range items {
		if i.pending[items[idx].ID] {
			items[idx].IsRead = true
		}
	}
	i.items = items
	i.unread = domain.CountUnread(items)
	i.loaded = true
	i.lastSeq = seq
	i.lastErr = nil
	i.updatedAt = i.now()
}

func (i *Inbox) UnreadCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.unread
}

func (i *Inbox) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	s := State{
		Items:       make([]domain.Notification, len(i.items)),
		UnreadCount: i.unread,
		Loaded:      i.loaded,
		UpdatedAt:   i.updatedAt,
	}
	copy(s.Items, i.items)
	if i.lastErr != nil {
		s.LastError = i.lastErr.Error()
	}
	return s
}

// MarkRead flags id as read locally, then tells the server. A failed write
// reverts the local change. Marking an item that is already read, or has a
// mark-read in flight, does nothing.
func (i *Inbox) MarkRead(ctx context.Context, id int64) error {
	i.mu.Lock()
	idx := i.indexOf(id)
	if idx < 0 {
		i.mu.Unlock()
		return ErrNotFound
	}
	if i.items[idx].IsRead || i.pending[id] {
		i.mu.Unlock()
		return nil
	}
	i.items[idx].IsRead = true
	if i.unread > 0 {
		i.unread--
	}
	i.pending[id] = true
	i.mu.Unlock()

	err := i.api.MarkNotificationRead(ctx, id)

	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.pending, id)
	if err == nil {
		return nil
	}

	i.log.Warning("mark read failed, reverting", logger.Int64("notification_id", id), logger.Error(err))
	// the list may have been replaced meanwhile; only revert what we changed
	if idx := i.indexOf(id); idx >= 0 && i.items[idx].IsRead {
		i.items[idx].IsRead = false
		i.unread = domain.CountUnread(i.items)
	}
	return err
}

func (i *Inbox) indexOf(id int64) int {
	for idx := range i.items {
		if i.items[idx].ID == id {
			return idx
		}
	}
	return -1
}

func (i *Inbox) Close() {
	i.closeOnce.Do(func() {
		i.mu.Lock()
		i.closed = true
		i.mu.Unlock()
		i.poller.Stop()
	})
}
