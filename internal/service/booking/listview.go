package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/Domenick1991/rentalwatch/internal/scheduler"
)

type BookingLister interface {
	ListBookings(ctx context.Context) ([]domain.Booking, error)
}

type PendingItem struct {
	Booking          domain.Booking
	Phase            domain.DisplayPhase
	RemainingSeconds int64
}

// Groups is the dashboard split of a booking list.
type Groups struct {
	Pending   []PendingItem
	Current   []domain.Booking
	History   []domain.Booking
	Loaded    bool
	LastError string
	UpdatedAt time.Time
}

// ListView polls the caller's booking list; the last successful fetch wins
// and a failed one keeps the previous list.
type ListView struct {
	lister BookingLister
	grace  time.Duration
	log    logger.ILogger
	now    func() time.Time
	poller *scheduler.Poller

	mu        sync.Mutex
	items     []domain.Booking
	loaded    bool
	lastSeq   uint64
	lastErr   error
	updatedAt time.Time
	closed    bool
	closeOnce sync.Once
}

func NewListView(lister BookingLister, interval, grace time.Duration, opts ...Option) *ListView {
	o := buildOptions(opts)
	v := &ListView{
		lister: lister,
		grace:  grace,
		log:    o.log.With(logger.String("view", "bookings")),
		now:    o.now,
	}
	v.poller = scheduler.New("booking-list", interval, v.poll, v.log)
	return v
}

func (v *ListView) Start(ctx context.Context) error {
	return v.poller.Start(ctx)
}

func (v *ListView) Refresh() error {
	return v.poller.Trigger()
}

func (v *ListView) poll(ctx context.Context, seq uint64) {
	items, err := v.lister.ListBookings(ctx)
	v.apply(seq, items, err)
}

func (v *ListView) apply(seq uint64, items []domain.Booking, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || seq < v.lastSeq {
		return
	}
	if err != nil {
		v.lastErr = err
		v.log.Warning("booking list poll failed", logger.Uint64("seq", seq), logger.Error(err))
		return
	}
	v.items = items
	v.loaded = true
	v.lastSeq = seq
	v.lastErr = nil
	v.updatedAt = v.now()
}

func (v *ListView) Items() []domain.Booking {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.Booking, len(v.items))
	copy(out, v.items)
	return out
}

// Groups splits the list at now: pending with their countdowns, approved
// as current, completed and cancelled as history. Each group is newest
// first.
func (v *ListView) Groups(now time.Time) Groups {
	v.mu.Lock()
	items := make([]domain.Booking, len(v.items))
	copy(items, v.items)
	g := Groups{Loaded: v.loaded, UpdatedAt: v.updatedAt}
	if v.lastErr != nil {
		g.LastError = v.lastErr.Error()
	}
	v.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	for _, b := range items {
		switch b.Status {
		case domain.BookingStatusPending:
			remaining := domain.RemainingSeconds(domain.Deadline(b.CreatedAt, v.grace), now)
			g.Pending = append(g.Pending, PendingItem{
				Booking:          b,
				Phase:            domain.DerivePhase(b.Status, remaining),
				RemainingSeconds: remaining,
			})
		case domain.BookingStatusApproved:
			g.Current = append(g.Current, b)
		default:
			g.History = append(g.History, b)
		}
	}
	return g
}

func (v *ListView) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.closed = true
		v.mu.Unlock()
		v.poller.Stop()
	})
}
