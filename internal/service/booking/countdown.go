package booking

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
)

// Countdown tracks the seconds left before a pending booking's grace period
// runs out. It is advisory: it never changes a booking's status.
type Countdown struct {
	grace    time.Duration
	interval time.Duration
	now      func() time.Time
	onTick   func(remaining int64)

	mu        sync.Mutex
	deadline  time.Time
	remaining int64
	running   bool
	stopped   bool
	cancel    context.CancelFunc
}

func NewCountdown(createdAt time.Time, grace, interval time.Duration, now func() time.Time, onTick func(int64)) *Countdown {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Second
	}
	c := &Countdown{
		grace:    grace,
		interval: interval,
		now:      now,
		onTick:   onTick,
	}
	c.rebase(createdAt)
	return c
}

// Tick recomputes the remaining seconds. Between re-bases the value never
// goes up, even if the wall clock steps backwards.
func (c *Countdown) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r := domain.RemainingSeconds(c.deadline, c.now()); r < c.remaining {
		c.remaining = r
	}
	return c.remaining
}

func (c *Countdown) Remaining() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// SetDeadline re-bases the countdown on a new created_at from the server.
func (c *Countdown) SetDeadline(createdAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebase(createdAt)
}

func (c *Countdown) rebase(createdAt time.Time) {
	c.deadline = domain.Deadline(createdAt, c.grace)
	c.remaining = domain.RemainingSeconds(c.deadline, c.now())
}

// Start runs the tick loop until Stop or ctx is done. A stopped countdown
// cannot be restarted.
func (c *Countdown) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running || c.stopped {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	go c.loop(ctx)
}

func (c *Countdown) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			remaining := c.Tick()
			if c.onTick != nil {
				c.onTick(remaining)
			}
		}
	}
}

func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.running = false
	if c.cancel != nil {
		c.cancel()
	}
}

// Running reports whether the tick loop is still scheduling ticks.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
