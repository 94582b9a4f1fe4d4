package booking

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Domenick1991/rentalwatch/internal/domain"
)

var ErrAlreadyWatched = errors.New("booking is already watched")

// Registry owns the watchers of one process, keyed by booking id.
type Registry struct {
	fetcher BookingFetcher
	cfg     WatcherConfig
	opts    []Option

	mu       sync.RWMutex
	watchers map[int64]*Watcher
}

func NewRegistry(fetcher BookingFetcher, cfg WatcherConfig, opts ...Option) *Registry {
	return &Registry{
		fetcher:  fetcher,
		cfg:      cfg,
		opts:     opts,
		watchers: make(map[int64]*Watcher),
	}
}

// Watch starts a watcher for id. seed may be nil.
func (r *Registry) Watch(ctx context.Context, id int64, seed *domain.Booking) (*Watcher, error) {
	if id <= 0 {
		return nil, domain.ValidationError{Field: "booking_id", Msg: "must be positive"}
	}

	r.mu.Lock()
	if _, ok := r.watchers[id]; ok {
		r.mu.Unlock()
		return nil, ErrAlreadyWatched
	}
	opts := append([]Option{}, r.opts...)
	if seed != nil {
		opts = append(opts, WithSeed(*seed))
	}
	w := NewWatcher(id, r.fetcher, r.cfg, opts...)
	r.watchers[id] = w
	r.mu.Unlock()

	if err := w.Start(ctx); err != nil {
		r.Unwatch(id)
		return nil, err
	}
	return w, nil
}

func (r *Registry) Get(id int64) (*Watcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.watchers[id]
	return w, ok
}

func (r *Registry) Snapshot(id int64) (Snapshot, bool) {
	w, ok := r.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return w.Snapshot(), true
}

// Snapshots returns every watched booking ordered by id.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	watchers := make([]*Watcher, 0, len(r.watchers))
	for _, w := range r.watchers {
		watchers = append(watchers, w)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(watchers))
	for _, w := range watchers {
		out = append(out, w.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out
}

// Refresh polls a watched booking now.
func (r *Registry) Refresh(id int64) error {
	w, ok := r.Get(id)
	if !ok {
		return domain.NotFoundError{Resource: "watched booking"}
	}
	return w.Refresh()
}

func (r *Registry) Unwatch(id int64) {
	r.mu.Lock()
	w, ok := r.watchers[id]
	delete(r.watchers, id)
	r.mu.Unlock()
	if ok {
		w.Close()
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	watchers := r.watchers
	r.watchers = make(map[int64]*Watcher)
	r.mu.Unlock()
	for _, w := range watchers {
		w.Close()
	}
}
