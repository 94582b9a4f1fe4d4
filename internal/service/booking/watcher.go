package booking

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/Domenick1991/rentalwatch/internal/scheduler"
)

const publishTimeout = 5 * time.Second

type BookingFetcher interface {
	GetBooking(ctx context.Context, id int64) (domain.Booking, error)
}

// PhaseSink receives every display-phase change a watcher observes.
type PhaseSink interface {
	PublishPhase(ctx context.Context, event domain.PhaseEvent) error
}

type WatcherConfig struct {
	GracePeriod    time.Duration
	PollInterval   time.Duration
	TickInterval   time.Duration
	StopOnTerminal bool
}

// Snapshot is a consistent copy of a watcher's state.
type Snapshot struct {
	BookingID        int64
	Loaded           bool
	Booking          *domain.Booking
	Status           domain.BookingStatus
	Phase            domain.DisplayPhase
	RemainingSeconds int64
	Deadline         time.Time
	Ticking          bool
	Polling          bool
	LastError        string
	UpdatedAt        time.Time
}

// Watcher keeps a local copy of one booking in step with the server: a
// poller for status and a countdown for the pending grace period.
type Watcher struct {
	id      int64
	cfg     WatcherConfig
	fetcher BookingFetcher
	sink    PhaseSink
	log     logger.ILogger
	now     func() time.Time

	poller *scheduler.Poller

	mu         sync.Mutex
	ctx        context.Context
	started    bool
	booking    *domain.Booking
	countdown  *Countdown
	phase      domain.DisplayPhase
	lastSeq    uint64
	lastErr    error
	updatedAt  time.Time
	closed     bool
	listeners  map[uint64]func(Snapshot)
	listenerID uint64

	closeOnce sync.Once
}

func NewWatcher(id int64, fetcher BookingFetcher, cfg WatcherConfig, opts ...Option) *Watcher {
	o := buildOptions(opts)
	w := &Watcher{
		id:        id,
		cfg:       cfg,
		fetcher:   fetcher,
		sink:      o.sink,
		log:       o.log.With(logger.Int64("booking_id", id)),
		now:       o.now,
		ctx:       context.Background(),
		listeners: make(map[uint64]func(Snapshot)),
	}
	w.poller = scheduler.New("booking", cfg.PollInterval, w.poll, w.log)

	if o.seed != nil {
		seed := *o.seed
		if seed.ID == 0 {
			seed.ID = id
		}
		w.apply(0, seed, nil)
	}
	return w
}

func (w *Watcher) ID() int64 { return w.id }

// Start begins polling and, for a pending booking, the countdown.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return scheduler.ErrStopped
	}
	w.ctx = ctx
	w.started = true
	if w.countdown != nil && w.currentStatus() == domain.BookingStatusPending {
		w.countdown.Start(ctx)
	}
	terminal := w.booking != nil && w.booking.Status.IsTerminal()
	w.mu.Unlock()

	if terminal && w.cfg.StopOnTerminal {
		w.poller.Stop()
		return nil
	}
	return w.poller.Start(ctx)
}

// Refresh polls once now, outside the regular schedule.
func (w *Watcher) Refresh() error {
	return w.poller.Trigger()
}

func (w *Watcher) poll(ctx context.Context, seq uint64) {
	b, err := w.fetcher.GetBooking(ctx, w.id)
	w.apply(seq, b, err)
}

// apply reconciles one poll result. A success overwrites the local copy
// wholesale; a failure only records the error. Results older than the last
// applied one and anything arriving after Close are dropped.
func (w *Watcher) apply(seq uint64, b domain.Booking, fetchErr error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if seq != 0 && seq < w.lastSeq {
		w.mu.Unlock()
		w.log.Debug("discarding stale poll result", logger.Uint64("seq", seq), logger.Uint64("last_seq", w.lastSeq))
		return
	}

	if fetchErr != nil {
		w.lastErr = fetchErr
		w.mu.Unlock()
		w.log.Warning("booking poll failed", logger.Uint64("seq", seq), logger.Error(fetchErr))
		w.notify()
		return
	}

	prev := w.booking
	w.booking = &b
	w.lastSeq = seq
	w.lastErr = nil
	w.updatedAt = w.now()

	if prev != nil && prev.Status != b.Status && !domain.CanTransition(prev.Status, b.Status) {
		w.log.Warning("server reported unexpected transition",
			logger.String("from", string(prev.Status)),
			logger.String("to", string(b.Status)),
		)
	}

	w.syncCountdown(prev, b)

	stopPolling := b.Status.IsTerminal() && w.cfg.StopOnTerminal
	event, changed := w.updatePhase()
	w.mu.Unlock()

	if stopPolling {
		w.poller.Stop()
	}
	if changed {
		w.publish(event)
	}
	w.notify()
}

// syncCountdown must be called with w.mu held.
func (w *Watcher) syncCountdown(prev *domain.Booking, b domain.Booking) {
	if b.Status != domain.BookingStatusPending {
		if w.countdown != nil {
			w.countdown.Stop()
		}
		return
	}

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		if prev != nil && !prev.CreatedAt.IsZero() {
			createdAt = prev.CreatedAt
		} else {
			w.log.Warning("booking has no created_at, counting from first observation")
			createdAt = w.now()
		}
		w.booking.CreatedAt = createdAt
	}

	if w.countdown == nil {
		w.countdown = NewCountdown(createdAt, w.cfg.GracePeriod, w.cfg.TickInterval, w.now, w.onTick)
		if w.started {
			w.countdown.Start(w.ctx)
		}
		return
	}
	if prev == nil || !prev.CreatedAt.Equal(createdAt) {
		w.countdown.SetDeadline(createdAt)
	}
}

func (w *Watcher) onTick(int64) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	event, changed := w.updatePhase()
	w.mu.Unlock()

	if changed {
		w.publish(event)
	}
	w.notify()
}

// updatePhase must be called with w.mu held.
func (w *Watcher) updatePhase() (domain.PhaseEvent, bool) {
	if w.booking == nil {
		return domain.PhaseEvent{}, false
	}
	remaining := w.remaining()
	next := domain.DerivePhase(w.booking.Status, remaining)
	if next == w.phase {
		return domain.PhaseEvent{}, false
	}
	prev := w.phase
	w.phase = next
	return domain.NewPhaseEvent(w.id, prev, next, w.booking.Status, remaining, w.now()), true
}

// remaining must be called with w.mu held.
func (w *Watcher) remaining() int64 {
	if w.countdown == nil {
		return 0
	}
	if w.booking != nil && w.booking.Status == domain.BookingStatusPending {
		return w.countdown.Tick()
	}
	return w.countdown.Remaining()
}

func (w *Watcher) currentStatus() domain.BookingStatus {
	if w.booking == nil {
		return ""
	}
	return w.booking.Status
}

func (w *Watcher) publish(event domain.PhaseEvent) {
	w.log.Info("booking phase changed",
		logger.String("from", string(event.PreviousPhase)),
		logger.String("to", string(event.Phase)),
		logger.Int64("remaining_seconds", event.RemainingSeconds),
	)
	if w.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := w.sink.PublishPhase(ctx, event); err != nil {
		w.log.Warning("failed to publish phase event", logger.Error(err))
	}
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Watcher) snapshotLocked() Snapshot {
	s := Snapshot{
		BookingID: w.id,
		Loaded:    w.booking != nil,
		UpdatedAt: w.updatedAt,
		Polling:   !w.poller.Stopped(),
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	if w.booking == nil {
		return s
	}
	b := *w.booking
	s.Booking = &b
	s.Status = b.Status
	s.RemainingSeconds = w.remaining()
	s.Phase = domain.DerivePhase(b.Status, s.RemainingSeconds)
	if w.countdown != nil {
		s.Deadline = w.countdown.Deadline()
		s.Ticking = w.countdown.Running()
	}
	return s
}

// Subscribe registers fn for every new snapshot. fn runs on the poll or
// tick goroutine and must not block.
func (w *Watcher) Subscribe(fn func(Snapshot)) func() {
	w.mu.Lock()
	w.listenerID++
	id := w.listenerID
	w.listeners[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

func (w *Watcher) notify() {
	w.mu.Lock()
	if w.closed || len(w.listeners) == 0 {
		w.mu.Unlock()
		return
	}
	snap := w.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Close stops both loops. Poll results still in flight are discarded.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		cd := w.countdown
		w.listeners = map[uint64]func(Snapshot){}
		w.mu.Unlock()

		w.poller.Stop()
		if cd != nil {
			cd.Stop()
		}
	})
}
