package booking

import (
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
)

type options struct {
	log  logger.ILogger
	now  func() time.Time
	sink PhaseSink
	seed *domain.Booking
}

type Option func(*options)

func WithLogger(log logger.ILogger) Option {
	return func(o *options) { o.log = log }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithPhaseSink(sink PhaseSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithSeed starts a watcher from a booking the caller already holds, e.g.
// the create response, instead of waiting for the first poll.
func WithSeed(b domain.Booking) Option {
	return func(o *options) { o.seed = &b }
}

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}
