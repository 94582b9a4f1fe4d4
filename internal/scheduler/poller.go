// Package scheduler runs fixed-interval poll jobs on robfig/cron.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/robfig/cron/v3"
)

var ErrStopped = errors.New("poller stopped")

// Job is one poll. seq increases with every run, scheduled or manual, so
// callers can drop responses that arrive out of order. ctx is cancelled
// when the poller stops.
type Job func(ctx context.Context, seq uint64)

type Poller struct {
	name     string
	interval time.Duration
	job      Job
	log      logger.ILogger

	cron      *cron.Cron
	scheduled cron.Job
	ctx       context.Context
	cancel    context.CancelFunc
	seq       atomic.Uint64

	mu       sync.Mutex
	started  bool
	stopped  bool
	inflight chan struct{}
}

func New(name string, interval time.Duration, job Job, log logger.ILogger) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.String("poller", name))
	cl := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		name:     name,
		interval: interval,
		job:      job,
		log:      log,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		ctx:      ctx,
		cancel:   cancel,
	}
	// one wrapped job serves both the immediate run and the schedule, so
	// at most one of them is ever in flight
	p.scheduled = cron.NewChain(cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() { p.run() }))
	return p
}

// Start runs the job once right away and then every interval until Stop
// is called or parent is done.
func (p *Poller) Start(parent context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return nil
	}
	if p.interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	p.cron.Schedule(cron.Every(p.interval), p.scheduled)
	p.cron.Start()
	p.started = true

	if parent != nil {
		context.AfterFunc(parent, p.Stop)
	}

	p.log.Debug("poller started", logger.Duration("interval", p.interval))
	go p.scheduled.Run()
	return nil
}

// Trigger runs the job now on the calling goroutine, outside the schedule.
// If a run is already in flight, scheduled or manual, Trigger waits for it
// to finish instead of starting another one.
func (p *Poller) Trigger() error {
	if p.Stopped() {
		return ErrStopped
	}
	done, ok := p.begin()
	if !ok {
		select {
		case <-done:
			return nil
		case <-p.ctx.Done():
			return ErrStopped
		}
	}
	defer p.finish(done)
	p.job(p.ctx, p.seq.Add(1))
	return nil
}

// Stop cancels the schedule and the context handed to running jobs. It is
// idempotent and does not wait, so a job may stop its own poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	p.cancel()
	if started {
		p.cron.Stop()
	}
	p.log.Debug("poller stopped", logger.Uint64("runs", p.seq.Load()))
}

func (p *Poller) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Runs reports how many times the job has been started.
func (p *Poller) Runs() uint64 {
	return p.seq.Load()
}

func (p *Poller) run() {
	if p.ctx.Err() != nil {
		return
	}
	done, ok := p.begin()
	if !ok {
		p.log.Debug("previous run still in flight, skipping")
		return
	}
	defer p.finish(done)
	p.job(p.ctx, p.seq.Add(1))
}

// begin claims the single run slot. When it is taken, the returned channel
// closes once the current run ends.
func (p *Poller) begin() (chan struct{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight != nil {
		return p.inflight, false
	}
	p.inflight = make(chan struct{})
	return p.inflight, true
}

func (p *Poller) finish(done chan struct{}) {
	p.mu.Lock()
	p.inflight = nil
	p.mu.Unlock()
	close(done)
}

// cronLogger adapts ILogger to cron's logr-style interface.
type cronLogger struct {
	log logger.ILogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
